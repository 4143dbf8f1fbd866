package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/scheduler"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// SchedulerController is the manager surface the admin endpoints drive.
type SchedulerController interface {
	SchedulerHealth
	Trigger(ctx context.Context, name string) (scheduler.RunResult, error)
	Status(ctx context.Context, name string) (scheduler.JobStatus, error)
}

// SchedulerHandler exposes manual triggers and status of background jobs.
type SchedulerHandler struct {
	manager SchedulerController
}

// NewSchedulerHandler constructs handler.
func NewSchedulerHandler(manager SchedulerController) *SchedulerHandler {
	return &SchedulerHandler{manager: manager}
}

// Trigger POST /admin/schedulers/:name/trigger.
func (h *SchedulerHandler) Trigger(c *fiber.Ctx) error {
	name := c.Params("name")
	result, err := h.manager.Trigger(c.UserContext(), name)
	if err != nil {
		return schedulerError(name, err)
	}
	status := fiber.StatusOK
	if !result.Success && result.Error == scheduler.ErrAlreadyRunning.Error() {
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(dto.NewTriggerResponse(result))
}

// Status GET /admin/schedulers/:name/status.
func (h *SchedulerHandler) Status(c *fiber.Ctx) error {
	name := c.Params("name")
	status, err := h.manager.Status(c.UserContext(), name)
	if err != nil {
		return schedulerError(name, err)
	}
	return c.JSON(dto.StatusResponse{
		Name:      status.Name,
		IsRunning: status.IsRunning,
		Schedule:  status.Schedule,
		LastRun:   status.LastRun,
	})
}

// Health GET /admin/schedulers/health.
func (h *SchedulerHandler) Health(c *fiber.Ctx) error {
	report := h.manager.Health(c.UserContext())
	if !report.Healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(report)
	}
	return c.JSON(report)
}

func schedulerError(name string, err error) error {
	if errors.Is(err, scheduler.ErrUnknownScheduler) {
		return apperrors.NewNotFound("scheduler", map[string]any{"name": name})
	}
	return apperrors.MapError(err)
}
