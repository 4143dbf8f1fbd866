package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusForApproval TicketStatus = "for_approval"
	TicketStatusOpen        TicketStatus = "open"
	TicketStatusOnHold      TicketStatus = "on_hold"
	TicketStatusResolved    TicketStatus = "resolved"
	TicketStatusClosed      TicketStatus = "closed"
	TicketStatusCancelled   TicketStatus = "cancelled"
)

// ActiveStatuses are the statuses counted toward a technician's workload.
var ActiveStatuses = []TicketStatus{TicketStatusOpen, TicketStatusOnHold, TicketStatusForApproval}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityTop    TicketPriority = "Top"
)

// TicketType distinguishes incident requests from service requests.
type TicketType string

const (
	TicketTypeIncident TicketType = "incident"
	TicketTypeService  TicketType = "service"
)

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID          string
	TemplateID  *string
	RequesterID string
	Type        TicketType
	Status      TicketStatus
	Priority    TicketPriority
	Subject     string
	FormData    FormData
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EscalationHistoryEntry records a fired escalation level.
type EscalationHistoryEntry struct {
	Level  int       `json:"level"`
	SentAt time.Time `json:"sentAt"`
	// Skipped marks a level that passed with nobody to notify.
	Skipped bool `json:"skipped,omitempty"`
}

// FormData holds the SLA, assignment and lifecycle fields stored with a ticket.
type FormData struct {
	SLAID                   *string                  `json:"slaId,omitempty"`
	SLADueDate              *time.Time               `json:"slaDueDate,omitempty"`
	SLAStopped              bool                     `json:"slaStopped,omitempty"`
	AssignedTechnicianID    string                   `json:"assignedTechnicianId,omitempty"`
	AssignedTechnicianEmail string                   `json:"assignedTechnicianEmail,omitempty"`
	AssignedAt              *time.Time               `json:"assignedDate,omitempty"`
	OriginalTechnicianID    string                   `json:"originalTechnicianId,omitempty"`
	AutoRevertedAt          *time.Time               `json:"autoRevertedAt,omitempty"`
	ResolvedAt              *time.Time               `json:"resolvedAt,omitempty"`
	ClosedAt                *time.Time               `json:"closedAt,omitempty"`
	CCEmails                []string                 `json:"ccEmails,omitempty"`
	Description             string                   `json:"description,omitempty"`
	Escalations             []EscalationHistoryEntry `json:"escalations,omitempty"`
}

// MaxEscalationLevel is the highest level an SLA may configure.
const MaxEscalationLevel = 4

// HasEscalation reports whether the level has already fired, or been
// skipped, for the ticket.
func (f FormData) HasEscalation(level int) bool {
	for _, entry := range f.Escalations {
		if entry.Level == level {
			return true
		}
	}
	return false
}

// AssigneeUpdate is the assignment field group of form data.
type AssigneeUpdate struct {
	TechnicianID         string
	TechnicianEmail      string
	AssignedAt           time.Time
	OriginalTechnicianID string
}

// ApplyAssignee copies the assignment group into f.
func (f *FormData) ApplyAssignee(u AssigneeUpdate) {
	at := u.AssignedAt
	f.AssignedTechnicianID = u.TechnicianID
	f.AssignedTechnicianEmail = u.TechnicianEmail
	f.AssignedAt = &at
	f.OriginalTechnicianID = u.OriginalTechnicianID
}

// SLAUpdate is the SLA field group of form data. A nil SLAID clears it.
type SLAUpdate struct {
	SLAID   *string
	DueDate time.Time
}

// ApplySLA copies the SLA group into f.
func (f *FormData) ApplySLA(u SLAUpdate) {
	due := u.DueDate
	f.SLAID = u.SLAID
	f.SLADueDate = &due
}

// Validate checks the invariants of the escalation history.
func (f FormData) Validate() error {
	seen := make(map[int]struct{}, len(f.Escalations))
	for _, entry := range f.Escalations {
		if entry.Level < 1 || entry.Level > MaxEscalationLevel {
			return fmt.Errorf("escalation level %d out of range", entry.Level)
		}
		if _, dup := seen[entry.Level]; dup {
			return fmt.Errorf("escalation level %d recorded twice", entry.Level)
		}
		seen[entry.Level] = struct{}{}
	}
	return nil
}
