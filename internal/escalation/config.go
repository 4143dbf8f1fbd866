package escalation

import (
	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// IncidentLevel is one of the four fixed escalation slots of an incident SLA.
type IncidentLevel struct {
	Enabled bool
	Days    int
	Hours   int
	Minutes int
	Timing  domain.EscalationTiming
	Targets []domain.EscalationTarget
}

// ServiceLevel is one row of a service SLA's escalation list.
// TimeToEscalate is expressed in hours.
type ServiceLevel struct {
	Level          int
	TimeToEscalate int
	Enabled        bool
	Timing         domain.EscalationTiming
	Targets        []domain.EscalationTarget
}

// LevelsFromIncident maps the incident slots to levels 1..4. Slots with no
// offset are dropped. Stored "after" timings are treated as "before".
func LevelsFromIncident(slots [domain.MaxEscalationLevel]IncidentLevel) []domain.EscalationLevel {
	levels := make([]domain.EscalationLevel, 0, len(slots))
	for i, slot := range slots {
		before := domain.SLADuration{Days: slot.Days, Hours: slot.Hours, Minutes: slot.Minutes}
		if before.IsZero() {
			continue
		}
		levels = append(levels, domain.EscalationLevel{
			Level:   i + 1,
			Enabled: slot.Enabled,
			Before:  before,
			Timing:  domain.EscalationBefore,
			Targets: slot.Targets,
		})
	}
	return levels
}

// LevelsFromService maps service escalation rows to levels.
func LevelsFromService(rows []ServiceLevel) []domain.EscalationLevel {
	levels := make([]domain.EscalationLevel, 0, len(rows))
	for _, row := range rows {
		if row.TimeToEscalate <= 0 {
			continue
		}
		levels = append(levels, domain.EscalationLevel{
			Level:   row.Level,
			Enabled: row.Enabled,
			Before:  domain.SLADuration{Hours: row.TimeToEscalate},
			Timing:  domain.EscalationBefore,
			Targets: row.Targets,
		})
	}
	return levels
}

type priorityRule struct {
	responseHours   int
	resolutionHours int
	autoEscalate    bool
}

var priorityRules = map[domain.TicketPriority]priorityRule{
	domain.TicketPriorityTop:    {responseHours: 4, resolutionHours: 24, autoEscalate: true},
	domain.TicketPriorityHigh:   {responseHours: 8, resolutionHours: 72, autoEscalate: true},
	domain.TicketPriorityMedium: {responseHours: 24, resolutionHours: 168, autoEscalate: true},
	domain.TicketPriorityLow:    {responseHours: 48, resolutionHours: 336, autoEscalate: false},
}

// DefaultConfig is the fallback SLA when no explicit configuration resolves.
// Unknown priorities use the Low rule.
func DefaultConfig(priority domain.TicketPriority, ticketType domain.TicketType) *domain.SLAConfig {
	rule, ok := priorityRules[priority]
	if !ok {
		priority = domain.TicketPriorityLow
		rule = priorityRules[priority]
	}
	if ticketType == "" {
		ticketType = domain.TicketTypeIncident
	}
	return &domain.SLAConfig{
		ID:                  "default-" + string(ticketType) + "-" + string(priority),
		Name:                "Default SLA - " + string(priority) + " Priority",
		Type:                ticketType,
		Priority:            priority,
		Response:            domain.SLADuration{Hours: rule.responseHours},
		Resolution:          domain.SLADuration{Hours: rule.resolutionHours},
		UseOperationalHours: true,
		AutoEscalate:        rule.autoEscalate,
		IsDefault:           true,
	}
}
