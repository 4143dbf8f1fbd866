package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/assignment"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// AutoAssigner picks a technician for a template.
type AutoAssigner interface {
	AutoAssign(ctx context.Context, templateID string) (*assignment.Assignment, error)
}

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets     repository.TicketRepository
	historyRepo repository.TicketHistoryRepository
	balancer    AutoAssigner
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	now         func() time.Time
	logger      *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Balancer    AutoAssigner
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Now         func() time.Time
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		historyRepo: deps.HistoryRepo,
		balancer:    deps.Balancer,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		now:         deps.Now,
		logger:      deps.Logger,
	}
}

// AutoAssignTicket selects a technician through the ticket's template
// routing and stores the assignee in form data.
func (s *AssignmentService) AutoAssignTicket(ctx context.Context, ticketID string) (*domain.Ticket, *assignment.Assignment, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	switch ticket.Status {
	case domain.TicketStatusResolved, domain.TicketStatusClosed, domain.TicketStatusCancelled:
		return nil, nil, apperrors.NewConflict("ticket is not assignable", map[string]any{"ticket_id": ticketID, "status": ticket.Status})
	}

	templateID := ""
	if ticket.TemplateID != nil {
		templateID = *ticket.TemplateID
	}
	result, err := s.balancer.AutoAssign(ctx, templateID)
	if err != nil {
		if errors.Is(err, assignment.ErrNoAvailableTechnicians) || errors.Is(err, assignment.ErrNoSupportGroups) {
			return nil, nil, apperrors.NewUnprocessable("NO_AVAILABLE_TECHNICIAN", err.Error(), err)
		}
		return nil, nil, apperrors.MapError(err)
	}

	now := s.now()
	previous := ticket.FormData.AssignedTechnicianID
	update := domain.AssigneeUpdate{
		TechnicianID:    result.Technician.ID,
		TechnicianEmail: result.Technician.Email,
		AssignedAt:      now,
	}
	if result.RedirectedFrom != nil {
		update.OriginalTechnicianID = result.RedirectedFrom.ID
	}
	if err := s.tickets.SetAssignee(ctx, ticket.ID, update); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	ticket.FormData.ApplyAssignee(update)

	if err := s.recordAssignment(ctx, ticket.ID, previous, result); err != nil {
		s.logger.Warn("failed to record assignment history", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.metrics.RecordAssignment(result.Strategy.String(), result.RedirectedFrom != nil)
	s.publishAssignmentEvent(ctx, ticket.ID, now, result)
	return ticket, result, nil
}

func (s *AssignmentService) recordAssignment(ctx context.Context, ticketID, previous string, result *assignment.Assignment) error {
	err := s.historyRepo.Create(ctx, domain.SystemHistory(ticketID, domain.HistoryActionAssigned, map[string]any{
		"previousTechnicianId": previous,
		"technicianId":         result.Technician.ID,
		"technicianName":       result.Technician.Name,
		"supportGroupId":       result.SupportGroupID,
		"strategy":             result.Strategy.String(),
	}))
	if err != nil || result.RedirectedFrom == nil {
		return err
	}
	details := map[string]any{
		"originalTechnicianId":   result.RedirectedFrom.ID,
		"originalTechnicianName": result.RedirectedFrom.Name,
		"backupTechnicianId":     result.Technician.ID,
		"backupTechnicianName":   result.Technician.Name,
	}
	if result.Backup != nil {
		details["backupConfigId"] = result.Backup.ID
		details["backupEndDate"] = result.Backup.EndDate
	}
	return s.historyRepo.Create(ctx, domain.SystemHistory(ticketID, domain.HistoryActionRedirected, details))
}

func (s *AssignmentService) publishAssignmentEvent(ctx context.Context, ticketID string, at time.Time, result *assignment.Assignment) {
	if s.dispatcher == nil {
		return
	}
	payload := events.TicketAssignedPayload{
		TechnicianID:    result.Technician.ID,
		TechnicianEmail: result.Technician.Email,
		SupportGroupID:  result.SupportGroupID,
		Strategy:        result.Strategy.String(),
	}
	if result.RedirectedFrom != nil {
		original := result.RedirectedFrom.ID
		payload.RedirectedFrom = &original
	}
	if err := s.dispatcher.Publish(ctx, events.New(events.EventTicketAssigned, ticketID, at, payload)); err != nil {
		s.logger.Warn("ticket_assigned handlers failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}
