package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/mocks"
)

func TestBackupReverter(t *testing.T) {
	expired := domain.BackupAssignment{
		ID:                   "bk-1",
		OriginalTechnicianID: "tech-1",
		BackupTechnicianID:   "tech-9",
		StartDate:            testNow.Add(-72 * time.Hour),
		EndDate:              testNow.Add(-time.Hour),
		Active:               true,
	}

	newReverter := func(tickets *mocks.MockTicketStore, backups *mocks.MockBackupStore, history *mocks.MockHistoryRecorder) *BackupReverter {
		return NewBackupReverter(BackupReverterDeps{
			Backups:   backups,
			Tickets:   tickets,
			Directory: users(domain.User{ID: "tech-1", Name: "Tina", Email: "tina@example.com"}),
			History:   history,
			Logger:    zap.NewNop(),
			Now:       fixedClock,
		}, time.Second)
	}

	t.Run("reassigns redirected tickets and deactivates", func(t *testing.T) {
		var reassigned []string
		var deactivated []string
		tickets := &mocks.MockTicketStore{
			ListRedirectedFunc: func(_ context.Context, backupID, originalID string) ([]domain.Ticket, error) {
				assert.Equal(t, "tech-9", backupID)
				assert.Equal(t, "tech-1", originalID)
				return []domain.Ticket{{ID: "T-1"}, {ID: "T-2"}}, nil
			},
			ReassignFunc: func(_ context.Context, id, from string, to domain.User, at time.Time) (bool, error) {
				assert.Equal(t, "tech-9", from)
				assert.Equal(t, "tina@example.com", to.Email)
				reassigned = append(reassigned, id)
				return id == "T-1", nil
			},
		}
		backups := &mocks.MockBackupStore{
			ListExpiredFunc: func(context.Context, time.Time) ([]domain.BackupAssignment, error) {
				return []domain.BackupAssignment{expired}, nil
			},
			DeactivateFunc: func(_ context.Context, id string) error {
				deactivated = append(deactivated, id)
				return nil
			},
		}
		history := &mocks.MockHistoryRecorder{}

		result := newReverter(tickets, backups, history).Run(context.Background())

		require.True(t, result.Success)
		assert.Equal(t, 1, result.Results.Completed)
		assert.Equal(t, []string{"T-1", "T-2"}, reassigned)
		assert.Equal(t, []string{"bk-1"}, deactivated)
		require.Len(t, history.Entries, 1)
		assert.Equal(t, domain.HistoryActionReassigned, history.Entries[0].Action)
	})

	t.Run("keeps backup active when a ticket fails", func(t *testing.T) {
		deactivated := false
		tickets := &mocks.MockTicketStore{
			ListRedirectedFunc: func(context.Context, string, string) ([]domain.Ticket, error) {
				return []domain.Ticket{{ID: "T-1"}}, nil
			},
			ReassignFunc: func(context.Context, string, string, domain.User, time.Time) (bool, error) {
				return false, errors.New("deadlock detected")
			},
		}
		backups := &mocks.MockBackupStore{
			ListExpiredFunc: func(context.Context, time.Time) ([]domain.BackupAssignment, error) {
				return []domain.BackupAssignment{expired}, nil
			},
			DeactivateFunc: func(context.Context, string) error {
				deactivated = true
				return nil
			},
		}

		result := newReverter(tickets, backups, &mocks.MockHistoryRecorder{}).Run(context.Background())

		require.True(t, result.Success)
		assert.Equal(t, 1, result.Results.Failed)
		assert.False(t, deactivated)
	})
}
