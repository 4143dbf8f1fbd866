package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-sla/internal/assignment"
	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/scheduler"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

type fakeManager struct {
	result  scheduler.RunResult
	err     error
	healthy bool
}

func (f *fakeManager) Trigger(_ context.Context, name string) (scheduler.RunResult, error) {
	if f.err != nil {
		return scheduler.RunResult{}, f.err
	}
	f.result.Job = name
	return f.result, nil
}

func (f *fakeManager) Status(_ context.Context, name string) (scheduler.JobStatus, error) {
	if f.err != nil {
		return scheduler.JobStatus{}, f.err
	}
	return scheduler.JobStatus{Name: name, IsRunning: true}, nil
}

func (f *fakeManager) Health(context.Context) scheduler.HealthReport {
	return scheduler.HealthReport{Healthy: f.healthy, Checks: map[string]string{}}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": domainErr.Code}})
		},
	})
}

func do(t *testing.T, app *fiber.App, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func TestSchedulerTrigger(t *testing.T) {
	t.Run("successful run", func(t *testing.T) {
		app := testApp()
		h := NewSchedulerHandler(&fakeManager{result: scheduler.RunResult{
			Success: true,
			Results: &scheduler.Summary{Processed: 3, Completed: 2, Skipped: 1},
		}})
		app.Post("/:name/trigger", h.Trigger)

		status, body := do(t, app, http.MethodPost, "/sla-monitoring/trigger")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(3), body["results"].(map[string]any)["processed"])
	})

	t.Run("already running", func(t *testing.T) {
		app := testApp()
		h := NewSchedulerHandler(&fakeManager{result: scheduler.RunResult{Error: scheduler.ErrAlreadyRunning.Error()}})
		app.Post("/:name/trigger", h.Trigger)

		status, body := do(t, app, http.MethodPost, "/auto-close/trigger")
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "already processing", body["error"])
	})

	t.Run("unknown scheduler", func(t *testing.T) {
		app := testApp()
		h := NewSchedulerHandler(&fakeManager{err: scheduler.ErrUnknownScheduler})
		app.Post("/:name/trigger", h.Trigger)

		status, body := do(t, app, http.MethodPost, "/nope/trigger")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
	})
}

func TestSchedulerStatusAndHealth(t *testing.T) {
	app := testApp()
	h := NewSchedulerHandler(&fakeManager{healthy: false})
	app.Get("/health", h.Health)
	app.Get("/:name/status", h.Status)

	status, body := do(t, app, http.MethodGet, "/sla-monitoring/status")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isRunning"])

	status, body = do(t, app, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, false, body["healthy"])
}

func TestHealthReady(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		app := testApp()
		h := NewHealthHandler("helpdesk-sla", "test", pinger{}, pinger{}, &fakeManager{healthy: true})
		app.Get("/ready", h.Ready)

		status, body := do(t, app, http.MethodGet, "/ready")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("redis down", func(t *testing.T) {
		app := testApp()
		h := NewHealthHandler("helpdesk-sla", "test", pinger{}, pinger{err: errors.New("connection refused")}, nil)
		app.Get("/ready", h.Ready)

		status, body := do(t, app, http.MethodGet, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		details := body["error"].(map[string]any)["details"].(map[string]any)
		assert.Equal(t, "connection refused", details["redis"])
		assert.Equal(t, "ok", details["postgres"])
	})
}

type fakeTickets struct {
	filter  repository.TicketFilter
	history repository.HistoryFilter
}

func (f *fakeTickets) AutoAssignTicket(_ context.Context, ticketID string) (*domain.Ticket, *assignment.Assignment, error) {
	if ticketID == "missing" {
		return nil, nil, apperrors.NewNotFound("ticket", nil)
	}
	original := domain.Technician{ID: "tech-1"}
	return &domain.Ticket{ID: ticketID}, &assignment.Assignment{
		Technician:     domain.Technician{ID: "tech-9", Name: "Cy"},
		RedirectedFrom: &original,
		SupportGroupID: "g1",
		Strategy:       assignment.Random,
	}, nil
}

func (f *fakeTickets) ComputeDueDate(_ context.Context, ticketID string) (*service.DueDateResult, error) {
	return &service.DueDateResult{
		TicketID:        ticketID,
		SLA:             domain.SLAConfig{ID: "sla-1", Name: "Gold"},
		ResolutionHours: 8,
		DueDate:         time.Date(2025, 3, 12, 17, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeTickets) Status(context.Context, string) (calendar.SLAStatus, error) {
	return calendar.SLAStatus{State: calendar.StateOnTrack, RemainingHours: 5}, nil
}

func (f *fakeTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.filter = filter
	return []domain.Ticket{{ID: "t1", Status: domain.TicketStatusOpen, FormData: domain.FormData{
		Escalations: []domain.EscalationHistoryEntry{{Level: 1}},
	}}}, nil
}

func (f *fakeTickets) ListByTicket(_ context.Context, ticketID string, filter repository.HistoryFilter) ([]domain.TicketHistory, error) {
	f.history = filter
	return []domain.TicketHistory{
		*domain.SystemHistory(ticketID, domain.HistoryActionSLAEscalation, map[string]any{"level": 2}),
	}, nil
}

func ticketsApp(fake *fakeTickets) *fiber.App {
	app := testApp()
	h := NewTicketsHandler(fake, fake, fake, fake)
	app.Get("/tickets/:id/history", h.History)
	app.Get("/tickets", h.ListTickets)
	app.Post("/tickets/:id/assign", h.AutoAssign)
	app.Post("/tickets/:id/sla", h.ComputeDueDate)
	app.Get("/tickets/:id/sla", h.SLAStatus)
	return app
}

func TestTicketEndpoints(t *testing.T) {
	fake := &fakeTickets{}
	app := ticketsApp(fake)

	status, body := do(t, app, http.MethodPost, "/tickets/t1/assign")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "tech-9", body["technician_id"])
	assert.Equal(t, "tech-1", body["redirected_from_id"])
	assert.Equal(t, "random", body["strategy"])

	status, _ = do(t, app, http.MethodPost, "/tickets/missing/assign")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, app, http.MethodPost, "/tickets/t1/sla")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sla-1", body["sla_id"])
	assert.Equal(t, "2025-03-12T17:00:00Z", body["due_date"])

	status, body = do(t, app, http.MethodGet, "/tickets/t1/sla")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "on-track", body["status"])
}

func TestListTicketsQuery(t *testing.T) {
	fake := &fakeTickets{}
	app := ticketsApp(fake)

	status, body := do(t, app, http.MethodGet, "/tickets?status=open,on_hold&assignee=tech-1&page=2&page_size=10&due_before=2025-03-12T00:00:00Z")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)
	assert.Equal(t, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusOnHold}, fake.filter.Statuses)
	require.NotNil(t, fake.filter.AssigneeID)
	assert.Equal(t, "tech-1", *fake.filter.AssigneeID)
	assert.Equal(t, 10, fake.filter.Limit)
	assert.Equal(t, 10, fake.filter.Offset)
	require.NotNil(t, fake.filter.DueBefore)

	status, _ = do(t, app, http.MethodGet, "/tickets?page_size=500")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTicketHistory(t *testing.T) {
	fake := &fakeTickets{}
	app := ticketsApp(fake)

	status, body := do(t, app, http.MethodGet, "/tickets/t1/history?action=SLA%20Escalation&limit=5")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t1", body["ticket_id"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	entry := items[0].(map[string]any)
	assert.Equal(t, "SLA Escalation", entry["action"])
	assert.Equal(t, "System", entry["actor_name"])
	assert.Equal(t, []domain.HistoryAction{domain.HistoryActionSLAEscalation}, fake.history.Actions)
	assert.Equal(t, 5, fake.history.Limit)

	status, _ = do(t, app, http.MethodGet, "/tickets/t1/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, status)
}
