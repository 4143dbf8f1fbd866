package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

const maxHistoryEntries = 500

// HistoryFilter narrows a ticket's audit trail.
type HistoryFilter struct {
	Actions []domain.HistoryAction
	Limit   int
}

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string, filter HistoryFilter) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

const insertHistory = `
    INSERT INTO ticket_history (ticket_id, actor_type, actor_id, actor_name, action, details)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, created_at`

// Create appends an entry. Entries are never updated.
func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	return r.pool.QueryRow(ctx, insertHistory,
		entry.TicketID, entry.ActorType, entry.ActorID, entry.ActorName, entry.Action, details,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListByTicket returns entries oldest first, capped at maxHistoryEntries.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string, filter HistoryFilter) ([]domain.TicketHistory, error) {
	var (
		clauses = []string{"ticket_id=$1"}
		args    = []any{ticketID}
	)
	if len(filter.Actions) > 0 {
		actions := make([]string, 0, len(filter.Actions))
		for _, a := range filter.Actions {
			actions = append(actions, string(a))
		}
		args = append(args, actions)
		clauses = append(clauses, fmt.Sprintf("action = ANY($%d)", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxHistoryEntries {
		limit = maxHistoryEntries
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
        SELECT id, ticket_id, actor_type, actor_id, actor_name, action, details, created_at
        FROM ticket_history WHERE %s
        ORDER BY created_at ASC, id ASC
        LIMIT $%d`, strings.Join(clauses, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.TicketHistory, 0)
	for rows.Next() {
		var h domain.TicketHistory
		if err := rows.Scan(&h.ID, &h.TicketID, &h.ActorType, &h.ActorID, &h.ActorName, &h.Action, &h.Details, &h.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
