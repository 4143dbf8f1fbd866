// Package escalation decides when an SLA escalation level should fire.
//
// Every level is a one-shot latch keyed by its number in the ticket's
// escalation history, and every level fires strictly before the due date.
package escalation

import (
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Fire        bool
	Level       int
	TriggerTime time.Time
	Reason      string
	Targets     []domain.EscalationTarget
}

// Evaluate returns the lowest unfired level whose trigger time has been
// reached, provided now is still before due.
func Evaluate(now, due time.Time, history []domain.EscalationHistoryEntry, cfg *domain.SLAConfig) Decision {
	if !now.Before(due) {
		return Decision{Reason: "due date reached; escalations only fire before the due date"}
	}

	levels := EffectiveLevels(cfg)
	if len(levels) == 0 {
		return Decision{Reason: "no enabled escalation levels"}
	}

	fired := make(map[int]struct{}, len(history))
	for _, entry := range history {
		fired[entry.Level] = struct{}{}
	}

	var next *time.Time
	for _, lvl := range levels {
		if _, done := fired[lvl.Level]; done {
			continue
		}
		trigger := due.Add(-lvl.Before.Wall())
		if !trigger.Before(due) {
			continue
		}
		if !now.Before(trigger) {
			return Decision{
				Fire:        true,
				Level:       lvl.Level,
				TriggerTime: trigger,
				Reason:      fmt.Sprintf("level %d due %s before deadline", lvl.Level, lvl.Before.Wall()),
				Targets:     lvl.Targets,
			}
		}
		if next == nil || trigger.Before(*next) {
			t := trigger
			next = &t
		}
	}

	if next == nil {
		return Decision{Reason: "all escalation levels already fired"}
	}
	return Decision{TriggerTime: *next, Reason: "next escalation not reached yet"}
}

// EffectiveLevels returns the enabled levels of cfg in ascending order, or
// the default schedule when cfg defines no levels at all. AutoEscalate is
// descriptive only and does not gate either path.
func EffectiveLevels(cfg *domain.SLAConfig) []domain.EscalationLevel {
	if cfg == nil || len(cfg.Levels) == 0 {
		return DefaultSchedule()
	}
	levels := make([]domain.EscalationLevel, 0, len(cfg.Levels))
	for _, lvl := range cfg.Levels {
		if !lvl.Enabled || lvl.Level < 1 || lvl.Level > domain.MaxEscalationLevel {
			continue
		}
		lvl.Timing = domain.EscalationBefore
		if len(lvl.Targets) == 0 {
			lvl.Targets = defaultTargets(lvl.Level)
		}
		levels = append(levels, lvl)
	}
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels
}

// DefaultSchedule fires at 6h, 2h and 30min before the due date.
func DefaultSchedule() []domain.EscalationLevel {
	return []domain.EscalationLevel{
		{Level: 1, Enabled: true, Before: domain.SLADuration{Hours: 6}, Timing: domain.EscalationBefore, Targets: defaultTargets(1)},
		{Level: 2, Enabled: true, Before: domain.SLADuration{Hours: 2}, Timing: domain.EscalationBefore, Targets: defaultTargets(2)},
		{Level: 3, Enabled: true, Before: domain.SLADuration{Minutes: 30}, Timing: domain.EscalationBefore, Targets: defaultTargets(3)},
	}
}

func defaultTargets(level int) []domain.EscalationTarget {
	targets := []domain.EscalationTarget{{Kind: domain.TargetTechnician}}
	if level > 1 {
		targets = append(targets, domain.EscalationTarget{Kind: domain.TargetDepartmentHead})
	}
	return targets
}
