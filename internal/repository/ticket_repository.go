package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// TicketFilter captures admin search parameters.
type TicketFilter struct {
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	DueBefore  *time.Time
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByStatuses(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error)
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	SetAssignee(ctx context.Context, ticketID string, update domain.AssigneeUpdate) error
	SetSLA(ctx context.Context, ticketID string, update domain.SLAUpdate) error
	AppendEscalation(ctx context.Context, ticketID string, entry domain.EscalationHistoryEntry) (bool, error)
	CloseResolved(ctx context.Context, ticketID string, closedAt time.Time) (bool, error)
	ListRedirected(ctx context.Context, backupID, originalID string) ([]domain.Ticket, error)
	Reassign(ctx context.Context, ticketID, from string, to domain.User, at time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, template_id, requester_id, type, status, priority, subject, form_data, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ticket.FormData.Validate(); err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (template_id, requester_id, type, status, priority, subject, form_data)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TemplateID,
		ticket.RequesterID,
		ticket.Type,
		ticket.Status,
		ticket.Priority,
		ticket.Subject,
		ticket.FormData,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListByStatuses(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE status = ANY($1)
        ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, statusNames(statuses), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// resolvedAtExpr is the instant a ticket became resolved, falling back to its
// last update when form data carries none.
const resolvedAtExpr = `COALESCE((form_data->>'resolvedAt')::timestamptz, updated_at)`

// ListResolvedBefore returns resolved tickets whose resolution instant is at
// or before cutoff, longest-resolved first.
func (r *ticketRepository) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status=$1 AND ` + resolvedAtExpr + ` <= $2
        ORDER BY ` + resolvedAtExpr + ` ASC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, string(domain.TicketStatusResolved), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("form_data->>'assignedTechnicianId'=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, statusNames(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, string(pr))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		clauses = append(clauses, fmt.Sprintf("(form_data->>'slaDueDate')::timestamptz <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// SetAssignee rewrites only the assignment keys of form data. An empty
// OriginalTechnicianID removes the redirect marker.
func (r *ticketRepository) SetAssignee(ctx context.Context, ticketID string, update domain.AssigneeUpdate) error {
	const query = `
        UPDATE tickets
        SET form_data = (form_data - 'originalTechnicianId')
                || jsonb_build_object(
                    'assignedTechnicianId', $2::text,
                    'assignedTechnicianEmail', $3::text,
                    'assignedDate', $4::text)
                || CASE WHEN $5::text = '' THEN '{}'::jsonb
                        ELSE jsonb_build_object('originalTechnicianId', $5::text) END,
            updated_at = NOW()
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query,
		ticketID,
		update.TechnicianID,
		update.TechnicianEmail,
		jsonTime(update.AssignedAt),
		update.OriginalTechnicianID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetSLA rewrites only the SLA keys of form data. A nil SLAID removes slaId.
func (r *ticketRepository) SetSLA(ctx context.Context, ticketID string, update domain.SLAUpdate) error {
	const query = `
        UPDATE tickets
        SET form_data = (form_data - 'slaId')
                || jsonb_build_object('slaDueDate', $2::text)
                || CASE WHEN $3::text IS NULL THEN '{}'::jsonb
                        ELSE jsonb_build_object('slaId', $3::text) END,
            updated_at = NOW()
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, ticketID, jsonTime(update.DueDate), update.SLAID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AppendEscalation is a single conditional statement, so two concurrent
// monitors can never record the same level twice.
func (r *ticketRepository) AppendEscalation(ctx context.Context, ticketID string, entry domain.EscalationHistoryEntry) (bool, error) {
	if entry.Level < 1 || entry.Level > domain.MaxEscalationLevel {
		return false, fmt.Errorf("escalation level %d out of range", entry.Level)
	}
	appended, err := json.Marshal([]domain.EscalationHistoryEntry{entry})
	if err != nil {
		return false, err
	}
	guard := fmt.Sprintf(`[{"level":%d}]`, entry.Level)

	const query = `
        UPDATE tickets
        SET form_data = jsonb_set(form_data, '{escalations}',
                COALESCE(form_data->'escalations', '[]'::jsonb) || $2::jsonb),
            updated_at = NOW()
        WHERE id=$1 AND NOT (COALESCE(form_data->'escalations', '[]'::jsonb) @> $3::jsonb)`
	cmd, err := r.pool.Exec(ctx, query, ticketID, string(appended), guard)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) CloseResolved(ctx context.Context, ticketID string, closedAt time.Time) (bool, error) {
	const query = `
        UPDATE tickets
        SET status=$2,
            form_data = form_data || jsonb_build_object('closedAt', $3::text),
            updated_at = NOW()
        WHERE id=$1 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query,
		ticketID,
		string(domain.TicketStatusClosed),
		jsonTime(closedAt),
		string(domain.TicketStatusResolved),
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) ListRedirected(ctx context.Context, backupID, originalID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE form_data->>'assignedTechnicianId'=$1
          AND form_data->>'originalTechnicianId'=$2
          AND status = ANY($3)
        ORDER BY created_at ASC`
	statuses := statusNames([]domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusOnHold})
	rows, err := r.pool.Query(ctx, query, backupID, originalID, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Reassign(ctx context.Context, ticketID, from string, to domain.User, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets
        SET form_data = (form_data - 'originalTechnicianId') || jsonb_build_object(
                'assignedTechnicianId', $3::text,
                'assignedTechnicianEmail', $4::text,
                'assignedDate', $5::text,
                'autoRevertedAt', $5::text),
            updated_at = NOW()
        WHERE id=$1 AND form_data->>'assignedTechnicianId'=$2`
	cmd, err := r.pool.Exec(ctx, query, ticketID, from, to.ID, to.Email, jsonTime(at))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TemplateID,
		&ticket.RequesterID,
		&ticket.Type,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Subject,
		&ticket.FormData,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func statusNames(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// jsonTime matches encoding/json's time.Time format so form data written by
// SQL decodes like form data written by Go.
func jsonTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
