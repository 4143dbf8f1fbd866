package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// JobApprovalReminders is the approval reminder job name.
const JobApprovalReminders = "approval-reminders"

// ApprovalReminderConfig tunes the reminder job.
type ApprovalReminderConfig struct {
	BatchSize     int
	BatchDelay    time.Duration
	DevOverride   bool
	QueryTimeout  time.Duration
	NotifyTimeout time.Duration
	DashboardURL  string
	Location      *time.Location
}

// ApprovalReminderDeps bundles the reminder collaborators.
type ApprovalReminderDeps struct {
	Approvals  ApprovalSource
	Calendars  CalendarSource
	Notifier   notify.Notifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
	// Sleep waits between batches. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ApprovalReminder sends one digest per approver listing every pending approval.
type ApprovalReminder struct {
	*runner
	deps ApprovalReminderDeps
	cfg  ApprovalReminderConfig
}

// NewApprovalReminder builds the reminder job.
func NewApprovalReminder(deps ApprovalReminderDeps, cfg ApprovalReminderConfig) *ApprovalReminder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	return &ApprovalReminder{
		runner: newRunner(JobApprovalReminders, deps.Logger, deps.Metrics, deps.Now),
		deps:   deps,
		cfg:    cfg,
	}
}

// Run performs one reminder cycle.
func (a *ApprovalReminder) Run(ctx context.Context) RunResult {
	return a.run(ctx, a.process)
}

// ApproverDigest is every pending approval of one approver.
type ApproverDigest struct {
	ApproverID    string
	ApproverName  string
	ApproverEmail string
	Approvals     []domain.Approval
}

// GroupByApprover groups approvals by approver in first-seen order. An
// approval without an approver ID is keyed by e-mail.
func GroupByApprover(approvals []domain.Approval) []ApproverDigest {
	index := map[string]int{}
	var digests []ApproverDigest
	for _, ap := range approvals {
		key := ap.ApproverID
		if key == "" {
			key = strings.ToLower(ap.ApproverEmail)
		}
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(digests)
			index[key] = i
			digests = append(digests, ApproverDigest{
				ApproverID:    ap.ApproverID,
				ApproverName:  ap.ApproverName,
				ApproverEmail: ap.ApproverEmail,
			})
		}
		digests[i].Approvals = append(digests[i].Approvals, ap)
	}
	return digests
}

func (a *ApprovalReminder) process(ctx context.Context) (*Summary, error) {
	now := a.now()
	if !a.cfg.DevOverride {
		if reason := a.nonWorkingDay(ctx, now); reason != "" {
			a.logger.Info("skipping approval reminders", zap.String("reason", reason))
			return &Summary{Note: reason}, nil
		}
	}

	qctx, cancel := withTimeout(ctx, a.cfg.QueryTimeout)
	pending, err := a.deps.Approvals.ListPending(qctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load pending approvals: %w", err)
	}

	digests := GroupByApprover(pending)
	summary := &Summary{Processed: len(digests)}
	var mu sync.Mutex

	for start := 0; start < len(digests); start += a.cfg.BatchSize {
		if start > 0 && a.cfg.BatchDelay > 0 {
			if err := a.deps.Sleep(ctx, a.cfg.BatchDelay); err != nil {
				return summary, fmt.Errorf("wait between reminder batches: %w", err)
			}
		}
		end := min(start+a.cfg.BatchSize, len(digests))

		var g errgroup.Group
		g.SetLimit(a.cfg.BatchSize)
		for _, digest := range digests[start:end] {
			g.Go(func() error {
				err := a.remind(ctx, digest, now)
				a.metrics.RecordReminder(err == nil)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					a.logger.Warn("approval reminder failed", zap.String("approver_id", digest.ApproverID), zap.Error(err))
					summary.fail(digest.ApproverID, err)
					return nil
				}
				summary.Completed++
				return nil
			})
		}
		_ = g.Wait()
	}
	return summary, nil
}

func (a *ApprovalReminder) nonWorkingDay(ctx context.Context, now time.Time) string {
	local := now.In(a.cfg.Location)
	if local.Weekday() == time.Sunday {
		return "sunday"
	}
	cal, err := a.deps.Calendars.Calendar(ctx)
	if err != nil || cal == nil {
		a.logger.Warn("holiday calendar unavailable; assuming working day", zap.Error(err))
		return ""
	}
	if cal.IsHoliday(now) {
		return "holiday"
	}
	return ""
}

func (a *ApprovalReminder) remind(ctx context.Context, digest ApproverDigest, now time.Time) error {
	if digest.ApproverEmail == "" {
		return notify.ErrNoRecipient
	}

	lines := make([]string, 0, len(digest.Approvals))
	for _, ap := range digest.Approvals {
		lines = append(lines, fmt.Sprintf("#%s %s (level %d)", ap.TicketID, ap.TicketSubject, ap.Level))
	}

	nctx, cancel := withTimeout(ctx, a.cfg.NotifyTimeout)
	defer cancel()
	err := a.deps.Notifier.Send(nctx, notify.Notification{
		Template: notify.TemplateApprovalReminder,
		To:       digest.ApproverEmail,
		Variables: map[string]string{
			"Approver_Name":    digest.ApproverName,
			"Pending_Count":    strconv.Itoa(len(digest.Approvals)),
			"Pending_Requests": strings.Join(lines, "\n"),
			"Approval_Link":    strings.TrimRight(a.cfg.DashboardURL, "/") + "/requests/approvals",
		},
	})
	if err != nil {
		return err
	}

	publish(ctx, a.deps.Dispatcher, a.logger, events.New(events.EventApprovalReminderSent, "", now,
		events.ApprovalReminderSentPayload{ApproverID: digest.ApproverID, Pending: len(digest.Approvals)}))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
