package dto

import "github.com/spec-kit/helpdesk-sla/internal/scheduler"

// TriggerResponse is the body of a manual scheduler trigger.
type TriggerResponse struct {
	Success bool               `json:"success"`
	RunID   string             `json:"run_id,omitempty"`
	Results *scheduler.Summary `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// StatusResponse reports whether a scheduler is running.
type StatusResponse struct {
	Name      string               `json:"name"`
	IsRunning bool                 `json:"isRunning"`
	Schedule  string               `json:"schedule,omitempty"`
	LastRun   *scheduler.RunResult `json:"lastRun,omitempty"`
}

// NewTriggerResponse maps a run result.
func NewTriggerResponse(result scheduler.RunResult) TriggerResponse {
	return TriggerResponse{
		Success: result.Success,
		RunID:   result.RunID,
		Results: result.Results,
		Error:   result.Error,
	}
}
