package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/assignment"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// TicketListQuery captures query filters for admin ticket listing.
type TicketListQuery struct {
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	DueBefore  *time.Time
	Page       int
	PageSize   int
}

// TicketSummary response.
type TicketSummary struct {
	ID                   string                `json:"id"`
	TemplateID           *string               `json:"template_id,omitempty"`
	Subject              string                `json:"subject"`
	Type                 domain.TicketType     `json:"type"`
	Status               domain.TicketStatus   `json:"status"`
	Priority             domain.TicketPriority `json:"priority"`
	AssignedTechnicianID string                `json:"assigned_technician_id,omitempty"`
	SLADueDate           *time.Time            `json:"sla_due_date,omitempty"`
	EscalationLevels     []int                 `json:"escalation_levels,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// AssignmentResponse describes an auto-assignment outcome.
type AssignmentResponse struct {
	TicketID         string  `json:"ticket_id"`
	TechnicianID     string  `json:"technician_id"`
	TechnicianName   string  `json:"technician_name"`
	TechnicianEmail  string  `json:"technician_email"`
	SupportGroupID   string  `json:"support_group_id"`
	Strategy         string  `json:"strategy"`
	RedirectedFromID *string `json:"redirected_from_id,omitempty"`
}

// DueDateResponse describes a stored due date.
type DueDateResponse struct {
	TicketID        string    `json:"ticket_id"`
	SLAID           string    `json:"sla_id"`
	SLAName         string    `json:"sla_name"`
	IsDefault       bool      `json:"is_default"`
	ResolutionHours float64   `json:"resolution_hours"`
	DueDate         time.Time `json:"due_date"`
}

// HistoryEntry is one audit trail row.
type HistoryEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ActorType string         `json:"actor_type"`
	ActorID   *string        `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewHistoryEntry maps an audit entry.
func NewHistoryEntry(h domain.TicketHistory) HistoryEntry {
	return HistoryEntry{
		ID:        h.ID,
		Action:    string(h.Action),
		ActorType: string(h.ActorType),
		ActorID:   h.ActorID,
		ActorName: h.ActorName,
		Details:   h.Details,
		CreatedAt: h.CreatedAt,
	}
}

// NewTicketSummary maps a ticket to its response shape.
func NewTicketSummary(ticket domain.Ticket) TicketSummary {
	summary := TicketSummary{
		ID:                   ticket.ID,
		TemplateID:           ticket.TemplateID,
		Subject:              ticket.Subject,
		Type:                 ticket.Type,
		Status:               ticket.Status,
		Priority:             ticket.Priority,
		AssignedTechnicianID: ticket.FormData.AssignedTechnicianID,
		SLADueDate:           ticket.FormData.SLADueDate,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
	}
	for _, entry := range ticket.FormData.Escalations {
		summary.EscalationLevels = append(summary.EscalationLevels, entry.Level)
	}
	return summary
}

// NewAssignmentResponse maps an assignment result.
func NewAssignmentResponse(ticketID string, result *assignment.Assignment) AssignmentResponse {
	resp := AssignmentResponse{
		TicketID:        ticketID,
		TechnicianID:    result.Technician.ID,
		TechnicianName:  result.Technician.Name,
		TechnicianEmail: result.Technician.Email,
		SupportGroupID:  result.SupportGroupID,
		Strategy:        result.Strategy.String(),
	}
	if result.RedirectedFrom != nil {
		id := result.RedirectedFrom.ID
		resp.RedirectedFromID = &id
	}
	return resp
}
