package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/assignment"
	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// TicketAssigner auto-assigns tickets.
type TicketAssigner interface {
	AutoAssignTicket(ctx context.Context, ticketID string) (*domain.Ticket, *assignment.Assignment, error)
}

// DueDateService computes and reports SLA due dates.
type DueDateService interface {
	ComputeDueDate(ctx context.Context, ticketID string) (*service.DueDateResult, error)
	Status(ctx context.Context, ticketID string) (calendar.SLAStatus, error)
}

// TicketLister searches tickets.
type TicketLister interface {
	ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
}

// HistoryReader reads a ticket's audit trail.
type HistoryReader interface {
	ListByTicket(ctx context.Context, ticketID string, filter repository.HistoryFilter) ([]domain.TicketHistory, error)
}

// TicketsHandler manages admin ticket endpoints.
type TicketsHandler struct {
	assigner TicketAssigner
	sla      DueDateService
	tickets  TicketLister
	history  HistoryReader
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(assigner TicketAssigner, sla DueDateService, tickets TicketLister, history HistoryReader) *TicketsHandler {
	return &TicketsHandler{assigner: assigner, sla: sla, tickets: tickets, history: history}
}

// ListTickets GET /admin/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	offset := (query.Page - 1) * query.PageSize
	tickets, err := h.tickets.ListWithFilter(c.UserContext(), repository.TicketFilter{
		AssigneeID: query.AssigneeID,
		Statuses:   query.Statuses,
		Priorities: query.Priorities,
		DueBefore:  query.DueBefore,
		Limit:      query.PageSize,
		Offset:     offset,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, dto.NewTicketSummary(ticket))
	}
	return c.JSON(fiber.Map{
		"items":     items,
		"page":      query.Page,
		"page_size": query.PageSize,
	})
}

// AutoAssign POST /admin/tickets/:id/assign.
func (h *TicketsHandler) AutoAssign(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	_, result, err := h.assigner.AutoAssignTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAssignmentResponse(ticketID, result))
}

// ComputeDueDate POST /admin/tickets/:id/sla.
func (h *TicketsHandler) ComputeDueDate(c *fiber.Ctx) error {
	result, err := h.sla.ComputeDueDate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.DueDateResponse{
		TicketID:        result.TicketID,
		SLAID:           result.SLA.ID,
		SLAName:         result.SLA.Name,
		IsDefault:       result.SLA.IsDefault,
		ResolutionHours: result.ResolutionHours,
		DueDate:         result.DueDate,
	})
}

// SLAStatus GET /admin/tickets/:id/sla.
func (h *TicketsHandler) SLAStatus(c *fiber.Ctx) error {
	status, err := h.sla.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// History GET /admin/tickets/:id/history?action=&limit=.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	filter := repository.HistoryFilter{}
	for _, a := range splitCSV(c.Query("action")) {
		filter.Actions = append(filter.Actions, domain.HistoryAction(a))
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return apperrors.NewValidationError("limit must be a positive integer", map[string]any{"limit": v})
		}
		filter.Limit = limit
	}

	ticketID := c.Params("id")
	entries, err := h.history.ListByTicket(c.UserContext(), ticketID, filter)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewHistoryEntry(entry))
	}
	return c.JSON(fiber.Map{"ticket_id": ticketID, "items": items})
}

func parseTicketListQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	query := dto.TicketListQuery{Page: 1, PageSize: 20}
	if v := strings.TrimSpace(c.Query("assignee")); v != "" {
		query.AssigneeID = &v
	}
	for _, s := range splitCSV(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(s))
	}
	for _, p := range splitCSV(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(p))
	}
	if v := c.Query("due_before"); v != "" {
		due, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return query, apperrors.NewValidationError("due_before must be RFC3339", map[string]any{"due_before": v})
		}
		query.DueBefore = &due
	}
	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return query, apperrors.NewValidationError("page must be a positive integer", nil)
		}
		query.Page = page
	}
	if v := c.Query("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > 100 {
			return query, apperrors.NewValidationError("page_size must be between 1 and 100", nil)
		}
		query.PageSize = size
	}
	return query, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
