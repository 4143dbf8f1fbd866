package calendar

import "time"

// SLAState classifies a ticket against its due date.
type SLAState string

const (
	StateOnTrack  SLAState = "on-track"
	StateAtRisk   SLAState = "at-risk"
	StateBreached SLAState = "breached"
)

const atRiskWindow = 2 * time.Hour

// SLAStatus is the remaining time report for one due date.
type SLAStatus struct {
	State            SLAState  `json:"status"`
	DueDate          time.Time `json:"dueDate"`
	RemainingHours   int       `json:"remainingHours"`
	RemainingMinutes int       `json:"remainingMinutes"`
}

// Status reports the state of a due date as seen at now.
func Status(now, due time.Time) SLAStatus {
	left := due.Sub(now)
	status := SLAStatus{DueDate: due}
	if left > 0 {
		status.RemainingHours = int(left / time.Hour)
		status.RemainingMinutes = int((left % time.Hour) / time.Minute)
	}
	switch {
	case now.After(due):
		status.State = StateBreached
	case left <= atRiskWindow:
		status.State = StateAtRisk
	default:
		status.State = StateOnTrack
	}
	return status
}
