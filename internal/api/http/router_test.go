package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/scheduler"
)

type idleManager struct{}

func (idleManager) Trigger(_ context.Context, name string) (scheduler.RunResult, error) {
	return scheduler.RunResult{Job: name, Success: true, Results: &scheduler.Summary{}}, nil
}

func (idleManager) Status(_ context.Context, name string) (scheduler.JobStatus, error) {
	return scheduler.JobStatus{Name: name}, nil
}

func (idleManager) Health(context.Context) scheduler.HealthReport {
	return scheduler.HealthReport{Healthy: true}
}

func newTestServer(t *testing.T) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	metrics := observability.NewMetrics("helpdesk_test")
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-sla", "test", nil, nil, idleManager{}),
		Schedulers:     handlers.NewSchedulerHandler(idleManager{}),
		Tickets:        handlers.NewTicketsHandler(nil, nil, nil, nil),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, nil),
		Metrics:        metrics.Handler(),
	})
	return app, tokens
}

func TestPublicRoutes(t *testing.T) {
	app, _ := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAdminRoutesRequireOperatorRole(t *testing.T) {
	app, tokens := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/admin/schedulers/sla-monitoring/trigger", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tech, _, err := tokens.GenerateToken("u1", "", domain.StaffRoleTechnician)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/admin/schedulers/sla-monitoring/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+tech)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	lead, _, err := tokens.GenerateToken("u2", "", domain.StaffRoleTeamLead)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/admin/schedulers/sla-monitoring/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+lead)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRouteIsJSONError(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}

func TestRequestIDPropagation(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.Header.Get(fiber.HeaderXRequestID))

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
