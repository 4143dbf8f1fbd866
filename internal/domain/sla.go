package domain

import "time"

// SLADuration is a days/hours/minutes triple as entered in SLA settings.
type SLADuration struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Wall converts the triple to a wall-clock duration with 24h days.
func (d SLADuration) Wall() time.Duration {
	return time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute
}

// IsZero reports whether no time was configured.
func (d SLADuration) IsZero() bool {
	return d.Days == 0 && d.Hours == 0 && d.Minutes == 0
}

// EscalationTiming is kept for stored configurations; only "before" is honored.
type EscalationTiming string

const (
	EscalationBefore EscalationTiming = "before"
	EscalationAfter  EscalationTiming = "after"
)

// EscalationTargetKind selects how an escalation recipient is resolved.
type EscalationTargetKind string

const (
	TargetTechnician     EscalationTargetKind = "technician"
	TargetDepartmentHead EscalationTargetKind = "department_head"
	TargetUser           EscalationTargetKind = "user"
)

// EscalationTarget names one recipient of an escalation notification.
type EscalationTarget struct {
	Kind   EscalationTargetKind `json:"kind"`
	UserID string               `json:"userId,omitempty"`
}

// EscalationLevel is a one-shot milestone fired Before ahead of the due date.
type EscalationLevel struct {
	Level   int                `json:"level"`
	Enabled bool               `json:"enabled"`
	Before  SLADuration        `json:"before"`
	Timing  EscalationTiming   `json:"timing"`
	Targets []EscalationTarget `json:"targets"`
}

// SLAConfig holds the durations and escalation levels that govern a ticket.
type SLAConfig struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Type                TicketType        `json:"type"`
	Priority            TicketPriority    `json:"priority"`
	Response            SLADuration       `json:"response"`
	Resolution          SLADuration       `json:"resolution"`
	UseOperationalHours bool              `json:"useOperationalHours"`
	// AutoEscalate is reported as configured; escalation is driven by Levels.
	AutoEscalate        bool              `json:"autoEscalate"`
	Levels              []EscalationLevel `json:"levels"`
	IsDefault           bool              `json:"isDefault"`
}
