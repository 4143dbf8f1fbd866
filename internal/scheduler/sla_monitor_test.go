package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/mocks"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
)

type monitorFixture struct {
	tickets  *mocks.MockTicketStore
	history  *mocks.MockHistoryRecorder
	notifier *mocks.MockNotifier
	appended []domain.EscalationHistoryEntry
	monitor  *SLAMonitor
}

func newMonitorFixture(tickets ...domain.Ticket) *monitorFixture {
	f := &monitorFixture{
		history:  &mocks.MockHistoryRecorder{},
		notifier: &mocks.MockNotifier{},
	}
	f.tickets = &mocks.MockTicketStore{
		ListByStatusesFunc: func(_ context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error) {
			return tickets, nil
		},
		AppendEscalationFunc: func(_ context.Context, _ string, entry domain.EscalationHistoryEntry) (bool, error) {
			f.appended = append(f.appended, entry)
			return true, nil
		},
	}
	f.monitor = NewSLAMonitor(SLAMonitorDeps{
		Tickets:   f.tickets,
		History:   f.history,
		Configs:   &mocks.MockSLAConfigSource{},
		Calendars: roundClock(),
		Directory: users(
			domain.User{ID: "tech-1", Name: "Tina Tech", Email: "tina@example.com"},
			domain.User{ID: "mgr-1", Name: "Manny", Email: "manny@example.com"},
		),
		Notifier: f.notifier,
		Logger:   zap.NewNop(),
		Now:      fixedClock,
	}, SLAMonitorConfig{DashboardURL: "https://desk.example.com/"})
	return f
}

func openTicket(id string, due time.Time) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		RequesterID: "req-1",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityHigh,
		Type:        domain.TicketTypeIncident,
		Subject:     "Printer on fire",
		CreatedAt:   testNow.Add(-48 * time.Hour),
		FormData: domain.FormData{
			SLADueDate:           ptrTime(due),
			AssignedTechnicianID: "tech-1",
		},
	}
}

func TestSLAMonitorFiresDueLevel(t *testing.T) {
	f := newMonitorFixture(openTicket("T-1", testNow.Add(5*time.Hour)))

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Results.Completed)
	require.Len(t, f.appended, 1)
	assert.Equal(t, 1, f.appended[0].Level)
	assert.Equal(t, testNow, f.appended[0].SentAt)

	sent := f.notifier.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.TemplateSLAEscalation, sent[0].Template)
	assert.Equal(t, "tina@example.com", sent[0].To)
	assert.Equal(t, "1", sent[0].Variables["Escalation_Level"])
	assert.Equal(t, "https://desk.example.com/requests/view/T-1", sent[0].Variables["Request_Link"])

	require.Len(t, f.history.Entries, 1)
	assert.Equal(t, domain.HistoryActionSLAEscalation, f.history.Entries[0].Action)
}

func TestSLAMonitorHigherLevelsReachDepartmentHead(t *testing.T) {
	ticket := openTicket("T-2", testNow.Add(90*time.Minute))
	ticket.FormData.Escalations = []domain.EscalationHistoryEntry{{Level: 1, SentAt: testNow.Add(-5 * time.Hour)}}
	f := newMonitorFixture(ticket)
	f.monitor.deps.Directory.(*mocks.MockDirectory).DepartmentHeadForFunc = func(_ context.Context, userID string) (*domain.User, error) {
		assert.Equal(t, "req-1", userID)
		return &domain.User{ID: "mgr-1", Name: "Manny", Email: "manny@example.com"}, nil
	}

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success)
	require.Len(t, f.appended, 1)
	assert.Equal(t, 2, f.appended[0].Level)
	var to []string
	for _, n := range f.notifier.Messages() {
		to = append(to, n.To)
	}
	assert.ElementsMatch(t, []string{"tina@example.com", "manny@example.com"}, to)
}

func TestSLAMonitorSkips(t *testing.T) {
	stopped := openTicket("T-stopped", testNow.Add(time.Hour))
	stopped.FormData.SLAStopped = true
	early := openTicket("T-early", testNow.Add(7*time.Hour))
	breached := openTicket("T-late", testNow.Add(-time.Minute))

	f := newMonitorFixture(stopped, early, breached)
	result := f.monitor.Run(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, 3, result.Results.Processed)
	assert.Equal(t, 3, result.Results.Skipped)
	assert.Empty(t, f.appended)
	assert.Empty(t, f.notifier.Messages())
}

func TestSLAMonitorComputesMissingDueDate(t *testing.T) {
	ticket := openTicket("T-3", testNow)
	ticket.FormData.SLADueDate = nil
	ticket.CreatedAt = testNow.Add(-3 * time.Hour)

	f := newMonitorFixture(ticket)
	f.monitor.deps.Configs = &mocks.MockSLAConfigSource{
		ResolveFunc: func(context.Context, *domain.Ticket) (*domain.SLAConfig, error) {
			return &domain.SLAConfig{Resolution: domain.SLADuration{Hours: 8}, UseOperationalHours: true}, nil
		},
	}

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success)
	require.Len(t, f.appended, 1, "5h remaining is inside the 6h default level")
	assert.Equal(t, 1, f.appended[0].Level)
}

func TestSLAMonitorHistoryWriteFailureLeavesLevelUnfired(t *testing.T) {
	f := newMonitorFixture(openTicket("T-4", testNow.Add(time.Hour)))
	f.tickets.AppendEscalationFunc = func(context.Context, string, domain.EscalationHistoryEntry) (bool, error) {
		return false, errors.New("connection reset")
	}

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Results.Failed)
	assert.Equal(t, "T-4", result.Results.Failures[0].ID)
	assert.Len(t, f.notifier.Messages(), 1)
	assert.Empty(t, f.history.Entries)
}

func TestSLAMonitorNotificationFailures(t *testing.T) {
	t.Run("partial failure still records the level", func(t *testing.T) {
		ticket := openTicket("T-5", testNow.Add(90*time.Minute))
		ticket.FormData.Escalations = []domain.EscalationHistoryEntry{{Level: 1}}
		f := newMonitorFixture(ticket)
		f.monitor.deps.Directory.(*mocks.MockDirectory).DepartmentHeadForFunc = func(context.Context, string) (*domain.User, error) {
			return &domain.User{ID: "mgr-1", Email: "manny@example.com"}, nil
		}
		f.notifier.SendFunc = func(_ context.Context, n notify.Notification) error {
			if n.To == "manny@example.com" {
				return errors.New("mailbox full")
			}
			return nil
		}

		result := f.monitor.Run(context.Background())
		require.True(t, result.Success)
		assert.Equal(t, 1, result.Results.Completed)
		require.Len(t, f.appended, 1)
	})

	t.Run("total failure is retried next cycle", func(t *testing.T) {
		f := newMonitorFixture(openTicket("T-6", testNow.Add(time.Hour)))
		f.notifier.SendFunc = func(context.Context, notify.Notification) error { return context.DeadlineExceeded }

		result := f.monitor.Run(context.Background())
		require.True(t, result.Success)
		assert.Equal(t, 1, result.Results.Failed)
		assert.Empty(t, f.appended)
	})
}

func TestSLAMonitorUnassignedTicketSkipsToDepartmentHead(t *testing.T) {
	ticket := openTicket("T-7", testNow.Add(90*time.Minute))
	ticket.FormData.AssignedTechnicianID = ""
	f := newMonitorFixture(ticket)
	f.monitor.deps.Directory.(*mocks.MockDirectory).DepartmentHeadForFunc = func(context.Context, string) (*domain.User, error) {
		return &domain.User{ID: "mgr-1", Name: "Manny", Email: "manny@example.com"}, nil
	}

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Results.Completed)
	assert.Zero(t, result.Results.Failed)

	require.Len(t, f.appended, 2)
	assert.Equal(t, 1, f.appended[0].Level)
	assert.True(t, f.appended[0].Skipped)
	assert.Equal(t, 2, f.appended[1].Level)
	assert.False(t, f.appended[1].Skipped)

	sent := f.notifier.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "manny@example.com", sent[0].To)
	assert.Equal(t, "2", sent[0].Variables["Escalation_Level"])

	require.Len(t, f.history.Entries, 2)
	assert.Equal(t, domain.HistoryActionSLASkipped, f.history.Entries[0].Action)
	assert.Equal(t, domain.HistoryActionSLAEscalation, f.history.Entries[1].Action)
}

func TestSLAMonitorLevelWithNobodyToNotifyIsSkipped(t *testing.T) {
	ticket := openTicket("T-8", testNow.Add(3*time.Hour))
	ticket.FormData.AssignedTechnicianID = "tech-gone"
	f := newMonitorFixture(ticket)

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Results.Skipped)
	require.Len(t, f.appended, 1)
	assert.Equal(t, 1, f.appended[0].Level)
	assert.True(t, f.appended[0].Skipped)
	assert.Empty(t, f.notifier.Messages())
}

func TestSLAMonitorRecipientLookupFailureIsRetried(t *testing.T) {
	ticket := openTicket("T-9", testNow.Add(90*time.Minute))
	ticket.FormData.AssignedTechnicianID = ""
	ticket.FormData.Escalations = []domain.EscalationHistoryEntry{{Level: 1, SentAt: testNow.Add(-5 * time.Hour)}}
	f := newMonitorFixture(ticket)
	f.monitor.deps.Directory.(*mocks.MockDirectory).DepartmentHeadForFunc = func(context.Context, string) (*domain.User, error) {
		return nil, context.DeadlineExceeded
	}

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Results.Failed)
	assert.Empty(t, f.appended)
	assert.Empty(t, f.notifier.Messages())
}

func TestSLAMonitorIsolatesTicketFailures(t *testing.T) {
	f := newMonitorFixture(openTicket("T-bad", testNow.Add(time.Hour)), openTicket("T-good", testNow.Add(time.Hour)))
	f.monitor.deps.Configs = &mocks.MockSLAConfigSource{
		ResolveFunc: func(_ context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error) {
			if ticket.ID == "T-bad" {
				return nil, context.DeadlineExceeded
			}
			return nil, nil
		},
	}

	result := f.monitor.Run(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Results.Failed)
	assert.Equal(t, 1, result.Results.Completed)
}

func TestSLAMonitorLoadFailure(t *testing.T) {
	f := newMonitorFixture()
	f.tickets.ListByStatusesFunc = func(context.Context, []domain.TicketStatus, int) ([]domain.Ticket, error) {
		return nil, errors.New("db down")
	}

	result := f.monitor.Run(context.Background())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "db down")
	assert.NotEmpty(t, result.RunID)
}

func TestSLAMonitorRequestsOpenAndOnHoldBatch(t *testing.T) {
	f := newMonitorFixture()
	f.tickets.ListByStatusesFunc = func(_ context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error) {
		assert.ElementsMatch(t, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusOnHold}, statuses)
		assert.Equal(t, 100, limit)
		return nil, nil
	}
	assert.True(t, f.monitor.Run(context.Background()).Success)
}

func TestSingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newMonitorFixture()
	f.tickets.ListByStatusesFunc = func(context.Context, []domain.TicketStatus, int) ([]domain.Ticket, error) {
		close(entered)
		<-release
		return nil, nil
	}

	var wg sync.WaitGroup
	var first RunResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = f.monitor.Run(context.Background())
	}()

	<-entered
	assert.True(t, f.monitor.Running())
	second := f.monitor.Run(context.Background())
	assert.False(t, second.Success)
	assert.Equal(t, "already processing", second.Error)
	assert.Empty(t, second.RunID)

	close(release)
	wg.Wait()
	assert.True(t, first.Success)
	assert.False(t, f.monitor.Running())
}

func TestPanicReleasesGuard(t *testing.T) {
	f := newMonitorFixture()
	f.tickets.ListByStatusesFunc = func(context.Context, []domain.TicketStatus, int) ([]domain.Ticket, error) {
		panic("nil map write")
	}

	result := f.monitor.Run(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "nil map write")
	assert.False(t, f.monitor.Running())

	f.tickets.ListByStatusesFunc = func(context.Context, []domain.TicketStatus, int) ([]domain.Ticket, error) {
		return nil, nil
	}
	assert.True(t, f.monitor.Run(context.Background()).Success)
}
