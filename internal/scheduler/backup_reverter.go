package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// JobBackupReversion is the backup reversion job name.
const JobBackupReversion = "backup-reversion"

// BackupReverterDeps bundles the reverter collaborators.
type BackupReverterDeps struct {
	Backups    BackupStore
	Tickets    TicketStore
	Directory  Directory
	History    HistoryRecorder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// BackupReverter hands tickets back to the original technician once a
// backup redirect has expired, then deactivates the redirect.
type BackupReverter struct {
	*runner
	deps         BackupReverterDeps
	queryTimeout time.Duration
}

// NewBackupReverter builds the reverter.
func NewBackupReverter(deps BackupReverterDeps, queryTimeout time.Duration) *BackupReverter {
	return &BackupReverter{
		runner:       newRunner(JobBackupReversion, deps.Logger, deps.Metrics, deps.Now),
		deps:         deps,
		queryTimeout: queryTimeout,
	}
}

// Run performs one reversion cycle.
func (b *BackupReverter) Run(ctx context.Context) RunResult {
	return b.run(ctx, b.process)
}

func (b *BackupReverter) process(ctx context.Context) (*Summary, error) {
	now := b.now()
	qctx, cancel := withTimeout(ctx, b.queryTimeout)
	expired, err := b.deps.Backups.ListExpired(qctx, now)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load expired backups: %w", err)
	}

	summary := &Summary{}
	for _, backup := range expired {
		summary.Processed++
		reverted, err := b.revert(ctx, backup, now)
		if err != nil {
			b.logger.Error("backup reversion failed", zap.String("backup_id", backup.ID), zap.Error(err))
			summary.fail(backup.ID, err)
			continue
		}
		b.logger.Info("backup reverted", zap.String("backup_id", backup.ID), zap.Int("tickets", reverted))
		summary.Completed++
	}
	return summary, nil
}

// revert reassigns every redirected ticket and deactivates the backup. The
// backup stays active when any ticket fails so the next run retries it.
func (b *BackupReverter) revert(ctx context.Context, backup domain.BackupAssignment, now time.Time) (int, error) {
	qctx, cancel := withTimeout(ctx, b.queryTimeout)
	defer cancel()

	original, err := b.deps.Directory.GetUser(qctx, backup.OriginalTechnicianID)
	if err != nil {
		return 0, fmt.Errorf("load original technician: %w", err)
	}
	tickets, err := b.deps.Tickets.ListRedirected(qctx, backup.BackupTechnicianID, backup.OriginalTechnicianID)
	if err != nil {
		return 0, fmt.Errorf("load redirected tickets: %w", err)
	}

	reverted := 0
	var errs []error
	for _, ticket := range tickets {
		ok, err := b.deps.Tickets.Reassign(qctx, ticket.ID, backup.BackupTechnicianID, *original, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("ticket %s: %w", ticket.ID, err))
			continue
		}
		if !ok {
			continue
		}
		reverted++
		recordHistory(ctx, b.deps.History, b.queryTimeout, b.logger,
			domain.SystemHistory(ticket.ID, domain.HistoryActionReassigned, map[string]any{
				"from":     backup.BackupTechnicianID,
				"to":       backup.OriginalTechnicianID,
				"backupId": backup.ID,
				"reason":   "backup period ended",
			}))
		publish(ctx, b.deps.Dispatcher, b.logger, events.New(events.EventTicketReassigned, ticket.ID, now,
			events.TicketReassignedPayload{
				FromTechnicianID: backup.BackupTechnicianID,
				ToTechnicianID:   backup.OriginalTechnicianID,
				Reason:           "backup period ended",
			}))
	}
	if len(errs) > 0 {
		return reverted, errors.Join(errs...)
	}

	if err := b.deps.Backups.Deactivate(qctx, backup.ID); err != nil {
		return reverted, fmt.Errorf("deactivate backup: %w", err)
	}
	return reverted, nil
}
