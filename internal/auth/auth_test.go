package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)

	token, expires, err := tm.GenerateToken("op-1", "Olive", domain.StaffRoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.Subject)
	assert.Equal(t, domain.StaffRoleAdmin, claims.Role)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("other", time.Minute).GenerateToken("op-1", "", domain.StaffRoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Minute).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenChecksIssuer(t *testing.T) {
	minted := NewTokenManager("secret", time.Minute, WithIssuer("helpdesk-portal"))
	token, _, err := minted.GenerateToken("op-1", "", domain.StaffRoleTechnician)
	require.NoError(t, err)

	claims, err := minted.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "helpdesk-portal", claims.Issuer)

	_, err = NewTokenManager("secret", time.Minute, WithIssuer("someone-else")).ParseToken(token)
	assert.Error(t, err)

	// No configured issuer accepts any.
	_, err = NewTokenManager("secret", time.Minute).ParseToken(token)
	assert.NoError(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	claims := &Claims{
		Role: domain.StaffRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "op-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

type directoryFunc func(ctx context.Context, id string) (*domain.User, error)

func (f directoryFunc) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return f(ctx, id)
}

func newApp(tm *TokenManager, minimum domain.StaffRole) *fiber.App {
	return newAppWithDirectory(tm, minimum, nil)
}

func newAppWithDirectory(tm *TokenManager, minimum domain.StaffRole, operators OperatorDirectory) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	app.Get("/admin", NewAuthMiddleware(tm, operators).Handle, RequireRole(minimum), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.SubjectID)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	app := newApp(tm, domain.StaffRoleTeamLead)

	admin, _, err := tm.GenerateToken("op-1", "", domain.StaffRoleAdmin)
	require.NoError(t, err)
	tech, _, err := tm.GenerateToken("op-2", "", domain.StaffRoleTechnician)
	require.NoError(t, err)
	stranger, _, err := tm.GenerateToken("op-3", "", domain.StaffRole("GUEST"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"insufficient role", "Bearer " + tech, http.StatusForbidden},
		{"unknown role", "Bearer " + stranger, http.StatusForbidden},
		{"admin allowed", "Bearer " + admin, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestAuthMiddlewareChecksOperatorDirectory(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	app := newAppWithDirectory(tm, domain.StaffRoleTechnician, directoryFunc(func(_ context.Context, id string) (*domain.User, error) {
		switch id {
		case "active":
			return &domain.User{ID: id, Name: "Ada", Active: true}, nil
		case "retired":
			return &domain.User{ID: id, Name: "Rex"}, nil
		default:
			return nil, pgx.ErrNoRows
		}
	}))

	tests := []struct {
		subject string
		want    int
	}{
		{"active", http.StatusOK},
		{"retired", http.StatusUnauthorized},
		{"ghost", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.subject, func(t *testing.T) {
			token, _, err := tm.GenerateToken(tc.subject, "", domain.StaffRoleAdmin)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
