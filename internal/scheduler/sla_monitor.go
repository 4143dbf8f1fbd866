package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/escalation"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// JobSLAMonitoring is the SLA monitor's job name.
const JobSLAMonitoring = "sla-monitoring"

const dueDateLayout = "2006-01-02 15:04"

// SLAMonitorConfig tunes the SLA monitor.
type SLAMonitorConfig struct {
	BatchSize     int
	QueryTimeout  time.Duration
	NotifyTimeout time.Duration
	DashboardURL  string
	Location      *time.Location
}

// SLAMonitorDeps bundles the SLA monitor collaborators.
type SLAMonitorDeps struct {
	Tickets    TicketStore
	History    HistoryRecorder
	Configs    SLAConfigSource
	Calendars  CalendarSource
	Directory  Directory
	Notifier   notify.Notifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// SLAMonitor fires proactive escalations for open and on-hold tickets.
type SLAMonitor struct {
	*runner
	deps SLAMonitorDeps
	cfg  SLAMonitorConfig
}

// NewSLAMonitor builds the monitor.
func NewSLAMonitor(deps SLAMonitorDeps, cfg SLAMonitorConfig) *SLAMonitor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &SLAMonitor{
		runner: newRunner(JobSLAMonitoring, deps.Logger, deps.Metrics, deps.Now),
		deps:   deps,
		cfg:    cfg,
	}
}

// Run performs one monitoring cycle.
func (m *SLAMonitor) Run(ctx context.Context) RunResult {
	return m.run(ctx, m.process)
}

func (m *SLAMonitor) process(ctx context.Context) (*Summary, error) {
	qctx, cancel := withTimeout(ctx, m.cfg.QueryTimeout)
	tickets, err := m.deps.Tickets.ListByStatuses(qctx,
		[]domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusOnHold}, m.cfg.BatchSize)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load open tickets: %w", err)
	}

	cal, err := m.deps.Calendars.Calendar(ctx)
	if err != nil || cal == nil {
		m.logger.Warn("operational calendar unavailable; using default hours", zap.Error(err))
		cal = calendar.New(nil, nil, m.cfg.Location)
	}

	now := m.now()
	summary := &Summary{}
	for i := range tickets {
		ticket := &tickets[i]
		summary.Processed++

		fired, err := m.checkTicket(ctx, cal, ticket, now)
		switch {
		case err != nil:
			m.logger.Error("sla check failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			summary.fail(ticket.ID, err)
		case fired:
			summary.Completed++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

func (m *SLAMonitor) checkTicket(ctx context.Context, cal *calendar.Calendar, ticket *domain.Ticket, now time.Time) (bool, error) {
	if ticket.FormData.SLAStopped {
		return false, nil
	}

	cfg, err := m.resolveConfig(ctx, ticket)
	if err != nil {
		return false, err
	}
	due := DueDateFor(cal, ticket, cfg)

	// Levels with nobody to notify are latched as skipped so the next level
	// can still fire in this cycle.
	for range domain.MaxEscalationLevel {
		decision := escalation.Evaluate(now, due, ticket.FormData.Escalations, cfg)
		if !decision.Fire {
			return false, nil
		}

		recipients, lookupErr := m.recipients(ctx, ticket, decision.Targets)
		if len(recipients) > 0 {
			if lookupErr != nil {
				m.logger.Warn("some escalation recipients could not be resolved",
					zap.String("ticket_id", ticket.ID), zap.Int("level", decision.Level), zap.Error(lookupErr))
			}
			return m.escalate(ctx, ticket, decision, due, cal.Location(), recipients, now)
		}
		if lookupErr != nil {
			return false, fmt.Errorf("level %d: resolve escalation recipients: %w", decision.Level, lookupErr)
		}
		if err := m.skipLevel(ctx, ticket, decision, due, now); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (m *SLAMonitor) skipLevel(ctx context.Context, ticket *domain.Ticket, decision escalation.Decision, due, now time.Time) error {
	entry := domain.EscalationHistoryEntry{Level: decision.Level, SentAt: now, Skipped: true}
	actx, cancel := withTimeout(ctx, m.cfg.QueryTimeout)
	appended, err := m.deps.Tickets.AppendEscalation(actx, ticket.ID, entry)
	cancel()
	if err != nil {
		return fmt.Errorf("record skipped escalation level %d: %w", decision.Level, err)
	}
	ticket.FormData.Escalations = append(ticket.FormData.Escalations, entry)
	if !appended {
		return nil
	}

	m.logger.Info("escalation level has no recipients; skipped",
		zap.String("ticket_id", ticket.ID), zap.Int("level", decision.Level))
	m.recordHistory(ctx, domain.SystemHistory(ticket.ID, domain.HistoryActionSLASkipped, map[string]any{
		"level":   decision.Level,
		"dueDate": due,
		"reason":  "no escalation recipients",
	}))
	return nil
}

func (m *SLAMonitor) escalate(ctx context.Context, ticket *domain.Ticket, decision escalation.Decision, due time.Time, loc *time.Location, recipients []recipient, now time.Time) (bool, error) {
	sent, sendErr := m.notify(ctx, ticket, decision, due, loc, recipients)
	if sent == 0 {
		return false, fmt.Errorf("level %d: every escalation notification failed: %w", decision.Level, sendErr)
	}
	if sendErr != nil {
		m.logger.Warn("some escalation notifications failed",
			zap.String("ticket_id", ticket.ID), zap.Int("level", decision.Level), zap.Error(sendErr))
	}

	entry := domain.EscalationHistoryEntry{Level: decision.Level, SentAt: now}
	actx, cancel := withTimeout(ctx, m.cfg.QueryTimeout)
	appended, err := m.deps.Tickets.AppendEscalation(actx, ticket.ID, entry)
	cancel()
	if err != nil {
		return false, fmt.Errorf("record escalation level %d: %w", decision.Level, err)
	}
	if !appended {
		return false, nil
	}
	ticket.FormData.Escalations = append(ticket.FormData.Escalations, entry)
	m.metrics.RecordEscalation(decision.Level)

	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		emails = append(emails, r.Email)
	}
	m.recordHistory(ctx, domain.SystemHistory(ticket.ID, domain.HistoryActionSLAEscalation, map[string]any{
		"level":      decision.Level,
		"dueDate":    due,
		"recipients": emails,
		"reason":     decision.Reason,
	}))
	m.publish(ctx, events.New(events.EventSLAEscalated, ticket.ID, now, events.SLAEscalatedPayload{
		Level:      decision.Level,
		DueDate:    due,
		Recipients: emails,
	}))
	return true, nil
}

// DueDateFor returns the stored due date of a ticket, or computes it from the
// creation time and the resolution target of cfg.
func DueDateFor(cal *calendar.Calendar, ticket *domain.Ticket, cfg *domain.SLAConfig) time.Time {
	if ticket.FormData.SLADueDate != nil {
		return *ticket.FormData.SLADueDate
	}
	hours := cal.ComponentsToWorkingHours(cfg.Resolution.Days, cfg.Resolution.Hours, cfg.Resolution.Minutes)
	return cal.DueDate(ticket.CreatedAt, hours, cfg.UseOperationalHours)
}

func (m *SLAMonitor) resolveConfig(ctx context.Context, ticket *domain.Ticket) (*domain.SLAConfig, error) {
	qctx, cancel := withTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()
	cfg, err := m.deps.Configs.Resolve(qctx, ticket)
	if err != nil {
		return nil, fmt.Errorf("resolve sla config: %w", err)
	}
	if cfg == nil {
		cfg = escalation.DefaultConfig(ticket.Priority, ticket.Type)
	}
	return cfg, nil
}

type recipient struct {
	Name  string
	Email string
}

// recipients resolves the targets of a level. Missing users are dropped; other
// lookup failures are joined into the returned error.
func (m *SLAMonitor) recipients(ctx context.Context, ticket *domain.Ticket, targets []domain.EscalationTarget) ([]recipient, error) {
	seen := map[string]struct{}{}
	var out []recipient
	var errs []error
	lookupFailed := func(what string, err error) {
		if err == nil || errors.Is(err, pgx.ErrNoRows) {
			return
		}
		errs = append(errs, fmt.Errorf("%s: %w", what, err))
	}
	add := func(name, email string) {
		key := strings.ToLower(strings.TrimSpace(email))
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, recipient{Name: name, Email: email})
	}

	qctx, cancel := withTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()

	for _, target := range targets {
		switch target.Kind {
		case domain.TargetTechnician:
			if ticket.FormData.AssignedTechnicianID == "" && ticket.FormData.AssignedTechnicianEmail == "" {
				continue
			}
			if ticket.FormData.AssignedTechnicianID != "" {
				user, err := m.deps.Directory.GetUser(qctx, ticket.FormData.AssignedTechnicianID)
				if err == nil && user != nil {
					add(user.Name, user.Email)
					continue
				}
				if ticket.FormData.AssignedTechnicianEmail == "" {
					lookupFailed("technician "+ticket.FormData.AssignedTechnicianID, err)
				}
			}
			add("Technician", ticket.FormData.AssignedTechnicianEmail)
		case domain.TargetDepartmentHead:
			head, err := m.deps.Directory.DepartmentHeadFor(qctx, ticket.RequesterID)
			if err != nil {
				lookupFailed("department head", err)
				continue
			}
			if head != nil {
				add(head.Name, head.Email)
			}
		case domain.TargetUser:
			user, err := m.deps.Directory.GetUser(qctx, target.UserID)
			if err != nil || user == nil {
				lookupFailed("user "+target.UserID, err)
				continue
			}
			add(user.Name, user.Email)
		}
	}
	return out, errors.Join(errs...)
}

// notify sends one notification per recipient and reports how many succeeded.
func (m *SLAMonitor) notify(ctx context.Context, ticket *domain.Ticket, decision escalation.Decision, due time.Time, loc *time.Location, recipients []recipient) (int, error) {
	remaining := due.Sub(m.now()).Round(time.Minute)
	sent := 0
	var errs []error
	for _, r := range recipients {
		nctx, cancel := withTimeout(ctx, m.cfg.NotifyTimeout)
		err := m.deps.Notifier.Send(nctx, notify.Notification{
			Template: notify.TemplateSLAEscalation,
			To:       r.Email,
			Variables: map[string]string{
				"Request_ID":       ticket.ID,
				"Request_Subject":  ticket.Subject,
				"Request_Priority": string(ticket.Priority),
				"Escalation_Level": strconv.Itoa(decision.Level),
				"Due_Date":         due.In(loc).Format(dueDateLayout),
				"Time_Remaining":   remaining.String(),
				"Recipient_Name":   r.Name,
				"Request_Link":     requestLink(m.cfg.DashboardURL, ticket.ID),
			},
		})
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", r.Email, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func (m *SLAMonitor) recordHistory(ctx context.Context, entry *domain.TicketHistory) {
	recordHistory(ctx, m.deps.History, m.cfg.QueryTimeout, m.logger, entry)
}

func (m *SLAMonitor) publish(ctx context.Context, event events.Event) {
	publish(ctx, m.deps.Dispatcher, m.logger, event)
}

func recordHistory(ctx context.Context, history HistoryRecorder, timeout time.Duration, logger *zap.Logger, entry *domain.TicketHistory) {
	if history == nil {
		return
	}
	hctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	if err := history.Create(hctx, entry); err != nil {
		logger.Warn("history write failed",
			zap.String("ticket_id", entry.TicketID), zap.String("action", string(entry.Action)), zap.Error(err))
	}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func requestLink(base, ticketID string) string {
	return strings.TrimRight(base, "/") + "/requests/view/" + ticketID
}
