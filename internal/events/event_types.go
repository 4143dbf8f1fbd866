package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned       EventType = "ticket_assigned"
	EventTicketReassigned     EventType = "ticket_reassigned"
	EventSLAEscalated         EventType = "sla_escalated"
	EventTicketClosed         EventType = "ticket_closed"
	EventApprovalReminderSent EventType = "approval_reminder_sent"
)

// Event represents a domain event emitted by services and schedulers.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh ID.
func New(eventType EventType, ticketID string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID    string  `json:"technician_id"`
	TechnicianEmail string  `json:"technician_email"`
	SupportGroupID  string  `json:"support_group_id"`
	Strategy        string  `json:"strategy"`
	RedirectedFrom  *string `json:"redirected_from,omitempty"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	FromTechnicianID string `json:"from_technician_id"`
	ToTechnicianID   string `json:"to_technician_id"`
	Reason           string `json:"reason"`
}

// SLAEscalatedPayload payload.
type SLAEscalatedPayload struct {
	Level      int       `json:"level"`
	DueDate    time.Time `json:"due_date"`
	Recipients []string  `json:"recipients"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ResolvedAt time.Time `json:"resolved_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// ApprovalReminderSentPayload payload.
type ApprovalReminderSentPayload struct {
	ApproverID string `json:"approver_id"`
	Pending    int    `json:"pending"`
}
