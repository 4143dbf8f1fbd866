package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/mocks"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
)

func approval(ticketID, approverID string) domain.Approval {
	return domain.Approval{
		ID:            ticketID + "-" + approverID,
		TicketID:      ticketID,
		TicketSubject: "Laptop request " + ticketID,
		Level:         1,
		ApproverID:    approverID,
		ApproverName:  "Approver " + approverID,
		ApproverEmail: approverID + "@example.com",
		Status:        domain.ApprovalPending,
	}
}

type reminderFixture struct {
	notifier *mocks.MockNotifier
	sleeps   []time.Duration
	listed   int32
	job      *ApprovalReminder
}

func newReminderFixture(now time.Time, holidays domain.HolidaySet, override bool, pending ...domain.Approval) *reminderFixture {
	f := &reminderFixture{notifier: &mocks.MockNotifier{}}
	f.job = NewApprovalReminder(ApprovalReminderDeps{
		Approvals: &mocks.MockApprovalSource{ListPendingFunc: func(context.Context) ([]domain.Approval, error) {
			atomic.AddInt32(&f.listed, 1)
			return pending, nil
		}},
		Calendars: &mocks.MockCalendarSource{Cal: calendar.New(nil, holidays, time.UTC)},
		Notifier:  f.notifier,
		Logger:    zap.NewNop(),
		Now:       func() time.Time { return now },
		Sleep: func(_ context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		},
	}, ApprovalReminderConfig{BatchSize: 5, BatchDelay: 500 * time.Millisecond, DevOverride: override})
	return f
}

func TestApprovalRemindersSkipNonWorkingDays(t *testing.T) {
	sunday := time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)

	t.Run("sunday", func(t *testing.T) {
		f := newReminderFixture(sunday, nil, false, approval("1", "a"))
		result := f.job.Run(context.Background())
		require.True(t, result.Success)
		assert.Equal(t, "sunday", result.Results.Note)
		assert.Zero(t, atomic.LoadInt32(&f.listed))
		assert.Empty(t, f.notifier.Messages())
	})

	t.Run("holiday", func(t *testing.T) {
		f := newReminderFixture(testNow, domain.NewHolidaySet("2025-03-12"), false, approval("1", "a"))
		result := f.job.Run(context.Background())
		assert.Equal(t, "holiday", result.Results.Note)
		assert.Empty(t, f.notifier.Messages())
	})

	t.Run("development override", func(t *testing.T) {
		f := newReminderFixture(sunday, nil, true, approval("1", "a"))
		result := f.job.Run(context.Background())
		assert.Equal(t, 1, result.Results.Completed)
		assert.Len(t, f.notifier.Messages(), 1)
	})
}

func TestApprovalRemindersOnePerApprover(t *testing.T) {
	pending := []domain.Approval{approval("10", "a"), approval("11", "b"), approval("12", "a")}
	for i := 0; i < 5; i++ {
		pending = append(pending, approval(fmt.Sprint(20+i), fmt.Sprint("x", i)))
	}
	f := newReminderFixture(testNow, nil, false, pending...)

	result := f.job.Run(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, 7, result.Results.Processed)
	assert.Equal(t, 7, result.Results.Completed)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, f.sleeps)

	sent := f.notifier.Messages()
	require.Len(t, sent, 7)
	for _, n := range sent {
		assert.Equal(t, notify.TemplateApprovalReminder, n.Template)
		if n.To == "a@example.com" {
			assert.Equal(t, "2", n.Variables["Pending_Count"])
			assert.Contains(t, n.Variables["Pending_Requests"], "#10")
			assert.Contains(t, n.Variables["Pending_Requests"], "#12")
		}
	}
}

func TestApprovalReminderFailuresAreCounted(t *testing.T) {
	f := newReminderFixture(testNow, nil, false, approval("1", "a"), approval("2", "b"))
	f.notifier.SendFunc = func(_ context.Context, n notify.Notification) error {
		if n.To == "b@example.com" {
			return errors.New("rejected")
		}
		return nil
	}

	result := f.job.Run(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Results.Completed)
	assert.Equal(t, 1, result.Results.Failed)
	assert.Equal(t, "b", result.Results.Failures[0].ID)
}

func TestGroupByApprover(t *testing.T) {
	noID := approval("3", "")
	noID.ApproverEmail = "Shared@Example.com"
	other := approval("4", "")
	other.ApproverEmail = "shared@example.com"

	digests := GroupByApprover([]domain.Approval{approval("1", "a"), noID, approval("2", "a"), other})

	require.Len(t, digests, 2)
	assert.Equal(t, "a", digests[0].ApproverID)
	assert.Len(t, digests[0].Approvals, 2)
	assert.Len(t, digests[1].Approvals, 2)
}
