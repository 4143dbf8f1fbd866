package domain

import "time"

// HistoryAction captures what happened in a history entry.
type HistoryAction string

const (
	HistoryActionAssigned      HistoryAction = "Assigned"
	HistoryActionRedirected    HistoryAction = "Backup-Redirected"
	HistoryActionReassigned    HistoryAction = "Technician-Reassigned"
	HistoryActionSLADueDateSet HistoryAction = "SLA Due Date Set"
	HistoryActionSLAEscalation HistoryAction = "SLA Escalation"
	HistoryActionSLASkipped    HistoryAction = "SLA Escalation Skipped"
	HistoryActionClosed        HistoryAction = "Status Changed to Closed"
)

// ActorType identifies who produced a history entry.
type ActorType string

const (
	ActorTypeSystem ActorType = "system"
	ActorTypeStaff  ActorType = "staff"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID        string
	TicketID  string
	ActorType ActorType
	ActorID   *string
	ActorName string
	Action    HistoryAction
	Details   map[string]any
	CreatedAt time.Time
}

// SystemHistory builds a history entry attributed to the system actor.
func SystemHistory(ticketID string, action HistoryAction, details map[string]any) *TicketHistory {
	return &TicketHistory{
		TicketID:  ticketID,
		ActorType: ActorTypeSystem,
		ActorName: "System",
		Action:    action,
		Details:   details,
	}
}
