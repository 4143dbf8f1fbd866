package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrUnknownScheduler is returned for a job name the manager does not own.
var ErrUnknownScheduler = errors.New("unknown scheduler")

// RunStore keeps the most recent result of each job.
type RunStore interface {
	Save(ctx context.Context, result RunResult) error
	// Last returns nil without error when the job has never run.
	Last(ctx context.Context, job string) (*RunResult, error)
}

// HealthCheck probes a dependency.
type HealthCheck func(ctx context.Context) error

// JobStatus describes one job.
type JobStatus struct {
	Name      string     `json:"name"`
	IsRunning bool       `json:"isRunning"`
	Schedule  string     `json:"schedule,omitempty"`
	LastRun   *RunResult `json:"lastRun,omitempty"`
}

// HealthReport is the composite health of the schedulers and their stores.
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	Schedulers []JobStatus       `json:"schedulers"`
	Checks     map[string]string `json:"checks"`
}

// Manager owns every job, its cron trigger and its last result. Build one per
// process and share it.
type Manager struct {
	mu        sync.RWMutex
	jobs      map[string]Job
	order     []string
	schedules map[string]string
	checks    map[string]HealthCheck

	cron   *cron.Cron
	store  RunStore
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager builds a manager for jobs. store may be nil.
func NewManager(logger *zap.Logger, store RunStore, loc *time.Location, jobs ...Job) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		jobs:      make(map[string]Job, len(jobs)),
		schedules: map[string]string{},
		checks:    map[string]HealthCheck{},
		cron:      cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{logger: logger})),
		store:     store,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, job := range jobs {
		m.jobs[job.Name()] = job
		m.order = append(m.order, job.Name())
	}
	return m
}

// Schedule registers a cron trigger for a job. An empty spec leaves the job
// manual-only.
func (m *Manager) Schedule(name, spec string) error {
	job, ok := m.job(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScheduler, name)
	}
	if spec == "" {
		return nil
	}
	if _, err := m.cron.AddFunc(spec, func() { m.execute(m.ctx, job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	m.mu.Lock()
	m.schedules[name] = spec
	m.mu.Unlock()
	return nil
}

// AddHealthCheck registers a dependency probe reported by Health.
func (m *Manager) AddHealthCheck(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Start begins cron triggering.
func (m *Manager) Start() {
	m.cron.Start()
	m.logger.Info("schedulers started", zap.Strings("jobs", m.order))
}

// Stop halts cron triggering and waits for running jobs until ctx expires.
func (m *Manager) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	defer m.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs a job immediately and returns its result.
func (m *Manager) Trigger(ctx context.Context, name string) (RunResult, error) {
	job, ok := m.job(name)
	if !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrUnknownScheduler, name)
	}
	return m.execute(ctx, job), nil
}

// Status reports whether a job is running and its last stored result.
func (m *Manager) Status(ctx context.Context, name string) (JobStatus, error) {
	job, ok := m.job(name)
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownScheduler, name)
	}
	return m.status(ctx, job), nil
}

// Health reports every job and every registered dependency probe.
func (m *Manager) Health(ctx context.Context) HealthReport {
	report := HealthReport{Healthy: true, Checks: map[string]string{}}
	for _, name := range m.order {
		job, _ := m.job(name)
		report.Schedulers = append(report.Schedulers, m.status(ctx, job))
	}

	m.mu.RLock()
	checks := make(map[string]HealthCheck, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	for name, check := range checks {
		if err := check(ctx); err != nil {
			report.Healthy = false
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}

// Names lists the managed jobs in registration order.
func (m *Manager) Names() []string {
	return append([]string(nil), m.order...)
}

func (m *Manager) job(name string) (Job, bool) {
	job, ok := m.jobs[name]
	return job, ok
}

func (m *Manager) status(ctx context.Context, job Job) JobStatus {
	m.mu.RLock()
	spec := m.schedules[job.Name()]
	m.mu.RUnlock()

	st := JobStatus{Name: job.Name(), IsRunning: job.Running(), Schedule: spec}
	if m.store != nil {
		last, err := m.store.Last(ctx, job.Name())
		if err != nil {
			m.logger.Warn("last run unavailable", zap.String("job", job.Name()), zap.Error(err))
		}
		st.LastRun = last
	}
	return st
}

func (m *Manager) execute(ctx context.Context, job Job) RunResult {
	result := job.Run(ctx)
	if m.store != nil && result.RunID != "" {
		if err := m.store.Save(ctx, result); err != nil {
			m.logger.Warn("saving run result failed", zap.String("job", job.Name()), zap.Error(err))
		}
	}
	return result
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
