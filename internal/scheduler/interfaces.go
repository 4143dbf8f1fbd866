package scheduler

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// TicketStore is the ticket persistence the schedulers read and write.
type TicketStore interface {
	// ListByStatuses returns at most limit tickets, oldest created first.
	ListByStatuses(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error)
	// ListResolvedBefore returns at most limit resolved tickets whose
	// resolution instant is at or before cutoff, oldest resolution first.
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// AppendEscalation records entry unless its level is already present.
	// It reports false when the level was already recorded.
	AppendEscalation(ctx context.Context, ticketID string, entry domain.EscalationHistoryEntry) (bool, error)
	// CloseResolved moves a resolved ticket to closed. It reports false when
	// the ticket was no longer resolved.
	CloseResolved(ctx context.Context, ticketID string, closedAt time.Time) (bool, error)
	// ListRedirected returns active tickets held by backupID that were
	// redirected away from originalID.
	ListRedirected(ctx context.Context, backupID, originalID string) ([]domain.Ticket, error)
	// Reassign moves a ticket from one technician to another when it is still
	// held by from. It reports false when the assignee changed meanwhile.
	Reassign(ctx context.Context, ticketID, from string, to domain.User, at time.Time) (bool, error)
}

// HistoryRecorder appends audit entries.
type HistoryRecorder interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
}

// SLAConfigSource resolves the explicit SLA configuration of a ticket.
// It returns nil without error when none applies.
type SLAConfigSource interface {
	Resolve(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error)
}

// CalendarSource yields the current operational calendar.
type CalendarSource interface {
	Calendar(ctx context.Context) (*calendar.Calendar, error)
}

// Directory resolves notification recipients.
type Directory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// DepartmentHeadFor returns the head of the user's department, or nil.
	DepartmentHeadFor(ctx context.Context, userID string) (*domain.User, error)
}

// ApprovalSource lists approvals awaiting a decision at the current level.
type ApprovalSource interface {
	ListPending(ctx context.Context) ([]domain.Approval, error)
}

// BackupStore manages backup technician redirects.
type BackupStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]domain.BackupAssignment, error)
	Deactivate(ctx context.Context, id string) error
}
