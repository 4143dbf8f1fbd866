package scheduler

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/mocks"
)

var testNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) // Wednesday

func fixedClock() time.Time { return testNow }

func roundClock() *mocks.MockCalendarSource {
	return &mocks.MockCalendarSource{
		Cal: calendar.New(&domain.OperationalHours{Mode: domain.WorkingTimeRoundClock}, nil, time.UTC),
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func users(list ...domain.User) *mocks.MockDirectory {
	byID := map[string]domain.User{}
	for _, u := range list {
		byID[u.ID] = u
	}
	return &mocks.MockDirectory{
		GetUserFunc: func(_ context.Context, id string) (*domain.User, error) {
			u, ok := byID[id]
			if !ok {
				return nil, pgx.ErrNoRows
			}
			return &u, nil
		},
	}
}
