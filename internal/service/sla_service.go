package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/escalation"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// SLAConfigResolver resolves the explicit SLA of a ticket, nil when none.
type SLAConfigResolver interface {
	Resolve(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error)
}

// CalendarSource yields the operational calendar.
type CalendarSource interface {
	Calendar(ctx context.Context) (*calendar.Calendar, error)
}

// SLAService computes and reports ticket due dates.
type SLAService struct {
	tickets   repository.TicketRepository
	history   repository.TicketHistoryRepository
	configs   SLAConfigResolver
	calendars CalendarSource
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// SLADependencies bundles collaborators.
type SLADependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Configs     SLAConfigResolver
	Calendars   CalendarSource
	Location    *time.Location
	Now         func() time.Time
	Logger      *zap.Logger
}

// DueDateResult is what ComputeDueDate stored on the ticket.
type DueDateResult struct {
	TicketID        string           `json:"ticketId"`
	SLA             domain.SLAConfig `json:"sla"`
	ResolutionHours float64          `json:"resolutionHours"`
	DueDate         time.Time        `json:"dueDate"`
}

// NewSLAService creates the service.
func NewSLAService(deps SLADependencies) *SLAService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SLAService{
		tickets:   deps.TicketRepo,
		history:   deps.HistoryRepo,
		configs:   deps.Configs,
		calendars: deps.Calendars,
		location:  deps.Location,
		now:       deps.Now,
		logger:    deps.Logger,
	}
}

// ComputeDueDate resolves the ticket's SLA, computes the due date from the
// ticket's creation time and stores it in form data.
func (s *SLAService) ComputeDueDate(ctx context.Context, ticketID string) (*DueDateResult, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed || ticket.Status == domain.TicketStatusCancelled {
		return nil, apperrors.NewConflict("ticket is no longer active", map[string]any{"ticket_id": ticketID, "status": ticket.Status})
	}

	cfg, err := s.resolveConfig(ctx, ticket)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	cal := s.calendar(ctx)
	hours := cal.ComponentsToWorkingHours(cfg.Resolution.Days, cfg.Resolution.Hours, cfg.Resolution.Minutes)
	due := cal.DueDate(ticket.CreatedAt, hours, cfg.UseOperationalHours)

	update := domain.SLAUpdate{DueDate: due}
	if !cfg.IsDefault {
		id := cfg.ID
		update.SLAID = &id
	}
	if err := s.tickets.SetSLA(ctx, ticket.ID, update); err != nil {
		return nil, apperrors.MapError(err)
	}

	entry := domain.SystemHistory(ticket.ID, domain.HistoryActionSLADueDateSet, map[string]any{
		"slaId":           cfg.ID,
		"slaName":         cfg.Name,
		"resolutionHours": hours,
		"dueDate":         due,
	})
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record due date history", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	return &DueDateResult{
		TicketID:        ticket.ID,
		SLA:             *cfg,
		ResolutionHours: hours,
		DueDate:         due,
	}, nil
}

// Status reports the ticket's SLA state. Tickets without a stored due date
// are measured against the date ComputeDueDate would store.
func (s *SLAService) Status(ctx context.Context, ticketID string) (calendar.SLAStatus, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return calendar.SLAStatus{}, err
	}
	due := ticket.FormData.SLADueDate
	if due == nil {
		cfg, err := s.resolveConfig(ctx, ticket)
		if err != nil {
			return calendar.SLAStatus{}, apperrors.MapError(err)
		}
		cal := s.calendar(ctx)
		computed := cal.DueDate(ticket.CreatedAt,
			cal.ComponentsToWorkingHours(cfg.Resolution.Days, cfg.Resolution.Hours, cfg.Resolution.Minutes),
			cfg.UseOperationalHours)
		due = &computed
	}
	return calendar.Status(s.now(), *due), nil
}

func (s *SLAService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *SLAService) resolveConfig(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error) {
	cfg, err := s.configs.Resolve(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = escalation.DefaultConfig(ticket.Priority, ticket.Type)
	}
	return cfg, nil
}

func (s *SLAService) calendar(ctx context.Context) *calendar.Calendar {
	cal, err := s.calendars.Calendar(ctx)
	if err != nil || cal == nil {
		s.logger.Warn("operational calendar unavailable; using default hours", zap.Error(err))
		return calendar.New(nil, nil, s.location)
	}
	return cal
}
