package mocks

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

// MockTicketStore is a function-based mock of the ticket repository.
type MockTicketStore struct {
	CreateFunc             func(ctx context.Context, ticket *domain.Ticket) error
	ListWithFilterFunc     func(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
	SetAssigneeFunc        func(ctx context.Context, ticketID string, update domain.AssigneeUpdate) error
	SetSLAFunc             func(ctx context.Context, ticketID string, update domain.SLAUpdate) error
	ListByStatusesFunc     func(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error)
	ListResolvedBeforeFunc func(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)
	GetByIDFunc            func(ctx context.Context, id string) (*domain.Ticket, error)
	AppendEscalationFunc   func(ctx context.Context, ticketID string, entry domain.EscalationHistoryEntry) (bool, error)
	CloseResolvedFunc      func(ctx context.Context, ticketID string, closedAt time.Time) (bool, error)
	ListRedirectedFunc     func(ctx context.Context, backupID, originalID string) ([]domain.Ticket, error)
	ReassignFunc           func(ctx context.Context, ticketID, from string, to domain.User, at time.Time) (bool, error)
}

func (m *MockTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ticket)
	}
	return errors.New("CreateFunc not implemented")
}

func (m *MockTicketStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if m.ListWithFilterFunc != nil {
		return m.ListWithFilterFunc(ctx, filter)
	}
	return nil, errors.New("ListWithFilterFunc not implemented")
}

func (m *MockTicketStore) SetAssignee(ctx context.Context, ticketID string, update domain.AssigneeUpdate) error {
	if m.SetAssigneeFunc != nil {
		return m.SetAssigneeFunc(ctx, ticketID, update)
	}
	return errors.New("SetAssigneeFunc not implemented")
}

func (m *MockTicketStore) SetSLA(ctx context.Context, ticketID string, update domain.SLAUpdate) error {
	if m.SetSLAFunc != nil {
		return m.SetSLAFunc(ctx, ticketID, update)
	}
	return errors.New("SetSLAFunc not implemented")
}

func (m *MockTicketStore) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	if m.ListResolvedBeforeFunc != nil {
		return m.ListResolvedBeforeFunc(ctx, cutoff, limit)
	}
	return nil, errors.New("ListResolvedBeforeFunc not implemented")
}

func (m *MockTicketStore) ListByStatuses(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error) {
	if m.ListByStatusesFunc != nil {
		return m.ListByStatusesFunc(ctx, statuses, limit)
	}
	return nil, errors.New("ListByStatusesFunc not implemented")
}

func (m *MockTicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, errors.New("GetByIDFunc not implemented")
}

func (m *MockTicketStore) AppendEscalation(ctx context.Context, ticketID string, entry domain.EscalationHistoryEntry) (bool, error) {
	if m.AppendEscalationFunc != nil {
		return m.AppendEscalationFunc(ctx, ticketID, entry)
	}
	return false, errors.New("AppendEscalationFunc not implemented")
}

func (m *MockTicketStore) CloseResolved(ctx context.Context, ticketID string, closedAt time.Time) (bool, error) {
	if m.CloseResolvedFunc != nil {
		return m.CloseResolvedFunc(ctx, ticketID, closedAt)
	}
	return false, errors.New("CloseResolvedFunc not implemented")
}

func (m *MockTicketStore) ListRedirected(ctx context.Context, backupID, originalID string) ([]domain.Ticket, error) {
	if m.ListRedirectedFunc != nil {
		return m.ListRedirectedFunc(ctx, backupID, originalID)
	}
	return nil, errors.New("ListRedirectedFunc not implemented")
}

func (m *MockTicketStore) Reassign(ctx context.Context, ticketID, from string, to domain.User, at time.Time) (bool, error) {
	if m.ReassignFunc != nil {
		return m.ReassignFunc(ctx, ticketID, from, to, at)
	}
	return false, errors.New("ReassignFunc not implemented")
}

// MockHistoryRecorder records audit entries in memory unless CreateFunc is set.
type MockHistoryRecorder struct {
	CreateFunc func(ctx context.Context, history *domain.TicketHistory) error
	Entries    []domain.TicketHistory
}

func (m *MockHistoryRecorder) Create(ctx context.Context, history *domain.TicketHistory) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, history)
	}
	m.Entries = append(m.Entries, *history)
	return nil
}

func (m *MockHistoryRecorder) ListByTicket(_ context.Context, ticketID string, filter repository.HistoryFilter) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, entry := range m.Entries {
		if entry.TicketID != ticketID {
			continue
		}
		if len(filter.Actions) > 0 && !slices.Contains(filter.Actions, entry.Action) {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// MockSLAConfigSource resolves nothing unless ResolveFunc is set.
type MockSLAConfigSource struct {
	ResolveFunc func(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error)
}

func (m *MockSLAConfigSource) Resolve(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, ticket)
	}
	return nil, nil
}

// MockCalendarSource returns Cal, or the result of CalendarFunc when set.
type MockCalendarSource struct {
	CalendarFunc func(ctx context.Context) (*calendar.Calendar, error)
	Cal          *calendar.Calendar
}

func (m *MockCalendarSource) Calendar(ctx context.Context) (*calendar.Calendar, error) {
	if m.CalendarFunc != nil {
		return m.CalendarFunc(ctx)
	}
	if m.Cal == nil {
		return nil, errors.New("CalendarFunc not implemented")
	}
	return m.Cal, nil
}

// MockDirectory is a function-based mock of the recipient directory.
type MockDirectory struct {
	GetUserFunc           func(ctx context.Context, id string) (*domain.User, error)
	DepartmentHeadForFunc func(ctx context.Context, userID string) (*domain.User, error)
}

func (m *MockDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, errors.New("GetUserFunc not implemented")
}

func (m *MockDirectory) DepartmentHeadFor(ctx context.Context, userID string) (*domain.User, error) {
	if m.DepartmentHeadForFunc != nil {
		return m.DepartmentHeadForFunc(ctx, userID)
	}
	return nil, nil
}

// MockApprovalSource is a function-based mock of pending approvals.
type MockApprovalSource struct {
	ListPendingFunc func(ctx context.Context) ([]domain.Approval, error)
}

func (m *MockApprovalSource) ListPending(ctx context.Context) ([]domain.Approval, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx)
	}
	return nil, errors.New("ListPendingFunc not implemented")
}

// MockBackupStore is a function-based mock of backup redirects.
type MockBackupStore struct {
	ListExpiredFunc func(ctx context.Context, now time.Time) ([]domain.BackupAssignment, error)
	DeactivateFunc  func(ctx context.Context, id string) error
}

func (m *MockBackupStore) ListExpired(ctx context.Context, now time.Time) ([]domain.BackupAssignment, error) {
	if m.ListExpiredFunc != nil {
		return m.ListExpiredFunc(ctx, now)
	}
	return nil, errors.New("ListExpiredFunc not implemented")
}

func (m *MockBackupStore) Deactivate(ctx context.Context, id string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, id)
	}
	return nil
}
