package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/escalation"
)

// SLARepository resolves the explicit SLA configuration of a ticket.
type SLARepository interface {
	GetByID(ctx context.Context, id string) (*domain.SLAConfig, error)
	Resolve(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error)
}

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSLARepository builds the repository.
func NewSLARepository(pool *pgxpool.Pool) SLARepository {
	return &slaRepository{pool: pool}
}

// incidentSlot and serviceRow are the stored shapes of the escalation column
// for incident and service SLAs respectively.
type incidentSlot struct {
	Enabled bool                      `json:"enabled"`
	Days    int                       `json:"days"`
	Hours   int                       `json:"hours"`
	Minutes int                       `json:"minutes"`
	Timing  domain.EscalationTiming   `json:"timing"`
	Targets []domain.EscalationTarget `json:"targets"`
}

type serviceRow struct {
	Level          int                       `json:"level"`
	TimeToEscalate int                       `json:"timeToEscalate"`
	Enabled        bool                      `json:"enabled"`
	Timing         domain.EscalationTiming   `json:"timing"`
	Targets        []domain.EscalationTarget `json:"targets"`
}

const slaColumns = `id, name, type, priority,
        response_days, response_hours, response_minutes,
        resolution_days, resolution_hours, resolution_minutes,
        use_operational_hours, auto_escalate, escalation`

func (r *slaRepository) GetByID(ctx context.Context, id string) (*domain.SLAConfig, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_configs WHERE id=$1 AND is_active`
	return scanSLAConfig(r.pool.QueryRow(ctx, query, id))
}

// Resolve prefers the SLA already pinned in form data, then the template's
// SLA, then the active SLA for the ticket's type and priority. It returns nil
// without error when nothing matches.
func (r *slaRepository) Resolve(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error) {
	if ticket.FormData.SLAID != nil {
		cfg, err := r.GetByID(ctx, *ticket.FormData.SLAID)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	if ticket.TemplateID != nil {
		query := `SELECT ` + slaColumns + `
            FROM sla_configs
            WHERE id = (SELECT sla_id FROM templates WHERE id=$1) AND is_active`
		cfg, err := scanSLAConfig(r.pool.QueryRow(ctx, query, *ticket.TemplateID))
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	ticketType := ticket.Type
	if ticketType == "" {
		ticketType = domain.TicketTypeIncident
	}
	query := `SELECT ` + slaColumns + `
        FROM sla_configs
        WHERE is_active AND type=$1 AND priority=$2
        ORDER BY created_at DESC
        LIMIT 1`
	cfg, err := scanSLAConfig(r.pool.QueryRow(ctx, query, string(ticketType), string(ticket.Priority)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

func scanSLAConfig(row pgx.Row) (*domain.SLAConfig, error) {
	var (
		cfg       domain.SLAConfig
		rawLevels []byte
	)
	if err := row.Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.Type,
		&cfg.Priority,
		&cfg.Response.Days,
		&cfg.Response.Hours,
		&cfg.Response.Minutes,
		&cfg.Resolution.Days,
		&cfg.Resolution.Hours,
		&cfg.Resolution.Minutes,
		&cfg.UseOperationalHours,
		&cfg.AutoEscalate,
		&rawLevels,
	); err != nil {
		return nil, err
	}
	levels, err := decodeLevels(cfg.Type, rawLevels)
	if err != nil {
		return nil, fmt.Errorf("sla %s escalation: %w", cfg.ID, err)
	}
	cfg.Levels = levels
	return &cfg, nil
}

func decodeLevels(ticketType domain.TicketType, raw []byte) ([]domain.EscalationLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if ticketType == domain.TicketTypeService {
		var rows []serviceRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		levels := make([]escalation.ServiceLevel, len(rows))
		for i, row := range rows {
			levels[i] = escalation.ServiceLevel(row)
		}
		return escalation.LevelsFromService(levels), nil
	}

	var stored []incidentSlot
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	if len(stored) > domain.MaxEscalationLevel {
		return nil, fmt.Errorf("%d incident escalation slots, at most %d allowed", len(stored), domain.MaxEscalationLevel)
	}
	var slots [domain.MaxEscalationLevel]escalation.IncidentLevel
	for i, slot := range stored {
		slots[i] = escalation.IncidentLevel(slot)
	}
	return escalation.LevelsFromIncident(slots), nil
}
