package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// JobAutoClose is the auto-close job name.
const JobAutoClose = "auto-close"

// AutoCloserConfig tunes the auto-closer.
type AutoCloserConfig struct {
	BatchSize     int
	GracePeriod   time.Duration
	QueryTimeout  time.Duration
	NotifyTimeout time.Duration
	DashboardURL  string
	Location      *time.Location
}

// AutoCloserDeps bundles the auto-closer collaborators.
type AutoCloserDeps struct {
	Tickets    TicketStore
	History    HistoryRecorder
	Directory  Directory
	Notifier   notify.Notifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// AutoCloser closes resolved tickets once the grace period has elapsed.
type AutoCloser struct {
	*runner
	deps AutoCloserDeps
	cfg  AutoCloserConfig
}

// NewAutoCloser builds the auto-closer.
func NewAutoCloser(deps AutoCloserDeps, cfg AutoCloserConfig) *AutoCloser {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AutoCloser{
		runner: newRunner(JobAutoClose, deps.Logger, deps.Metrics, deps.Now),
		deps:   deps,
		cfg:    cfg,
	}
}

// Run performs one auto-close cycle.
func (a *AutoCloser) Run(ctx context.Context) RunResult {
	return a.run(ctx, a.process)
}

func (a *AutoCloser) process(ctx context.Context) (*Summary, error) {
	now := a.now()
	qctx, cancel := withTimeout(ctx, a.cfg.QueryTimeout)
	tickets, err := a.deps.Tickets.ListResolvedBefore(qctx, now.Add(-a.cfg.GracePeriod), a.cfg.BatchSize)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load resolved tickets: %w", err)
	}

	summary := &Summary{}
	for i := range tickets {
		ticket := &tickets[i]
		summary.Processed++

		resolvedAt := ResolvedAt(ticket)
		if now.Sub(resolvedAt) < a.cfg.GracePeriod {
			summary.Skipped++
			continue
		}

		closed, err := a.closeTicket(ctx, ticket.ID, resolvedAt, now)
		switch {
		case err != nil:
			a.logger.Error("auto-close failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			summary.fail(ticket.ID, err)
		case closed:
			summary.Completed++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

// ResolvedAt is the recorded resolution instant, or the last update when the
// ticket carries none.
func ResolvedAt(ticket *domain.Ticket) time.Time {
	if ticket.FormData.ResolvedAt != nil {
		return *ticket.FormData.ResolvedAt
	}
	return ticket.UpdatedAt
}

func (a *AutoCloser) closeTicket(ctx context.Context, ticketID string, resolvedAt, now time.Time) (bool, error) {
	qctx, cancel := withTimeout(ctx, a.cfg.QueryTimeout)
	defer cancel()

	fresh, err := a.deps.Tickets.GetByID(qctx, ticketID)
	if err != nil {
		return false, fmt.Errorf("re-read ticket: %w", err)
	}
	if fresh.Status != domain.TicketStatusResolved {
		a.logger.Info("ticket changed status since scan; not closing",
			zap.String("ticket_id", ticketID), zap.String("status", string(fresh.Status)))
		return false, nil
	}

	closed, err := a.deps.Tickets.CloseResolved(qctx, ticketID, now)
	if err != nil {
		return false, fmt.Errorf("close ticket: %w", err)
	}
	if !closed {
		return false, nil
	}
	a.metrics.RecordClosure()

	recordHistory(ctx, a.deps.History, a.cfg.QueryTimeout, a.logger,
		domain.SystemHistory(ticketID, domain.HistoryActionClosed, map[string]any{
			"previousStatus": string(domain.TicketStatusResolved),
			"resolvedAt":     resolvedAt,
			"closedAt":       now,
			"reason":         "automatically closed after grace period",
		}))
	a.notifyClosure(ctx, fresh, resolvedAt, now)
	publish(ctx, a.deps.Dispatcher, a.logger, events.New(events.EventTicketClosed, ticketID, now,
		events.TicketClosedPayload{ResolvedAt: resolvedAt, ClosedAt: now}))
	return true, nil
}

func (a *AutoCloser) notifyClosure(ctx context.Context, ticket *domain.Ticket, resolvedAt, closedAt time.Time) {
	vars := map[string]string{
		"Request_ID":      ticket.ID,
		"Request_Subject": ticket.Subject,
		"Resolved_Date":   resolvedAt.In(a.cfg.Location).Format(dueDateLayout),
		"Closed_Date":     closedAt.In(a.cfg.Location).Format(dueDateLayout),
		"Request_Link":    requestLink(a.cfg.DashboardURL, ticket.ID),
	}

	lctx, cancel := withTimeout(ctx, a.cfg.QueryTimeout)
	requester, err := a.deps.Directory.GetUser(lctx, ticket.RequesterID)
	cancel()
	requesterEmail := ""
	if err != nil || requester == nil {
		a.logger.Warn("requester lookup failed; skipping requester notice", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else {
		requesterEmail = requester.Email
		vars["Requester_Name"] = requester.Name
		a.send(ctx, ticket.ID, notify.TemplateTicketClosed, requester.Email, vars)
	}

	for _, cc := range ticket.FormData.CCEmails {
		if strings.EqualFold(strings.TrimSpace(cc), requesterEmail) {
			continue
		}
		a.send(ctx, ticket.ID, notify.TemplateTicketClosedCC, cc, vars)
	}
}

func (a *AutoCloser) send(ctx context.Context, ticketID string, template notify.Template, to string, vars map[string]string) {
	nctx, cancel := withTimeout(ctx, a.cfg.NotifyTimeout)
	defer cancel()
	if err := a.deps.Notifier.Send(nctx, notify.Notification{Template: template, To: to, Variables: vars}); err != nil {
		a.logger.Warn("closure notification failed",
			zap.String("ticket_id", ticketID), zap.String("to", to), zap.Error(err))
	}
}
