package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// ErrAlreadyRunning is reported when a run is requested while one is active.
var ErrAlreadyRunning = errors.New("already processing")

// RunResult is the outcome of one scheduler run.
type RunResult struct {
	Job        string    `json:"job"`
	RunID      string    `json:"runId,omitempty"`
	Success    bool      `json:"success"`
	Results    *Summary  `json:"results,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Summary counts what a run did with each unit of work.
type Summary struct {
	Processed int       `json:"processed"`
	Completed int       `json:"completed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Failure is one unit of work that did not complete.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func (s *Summary) fail(id string, err error) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{ID: id, Error: err.Error()})
}

// Job is a guarded scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) RunResult
	Running() bool
}

type runner struct {
	name    string
	guard   Guard
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func newRunner(name string, logger *zap.Logger, metrics *observability.Metrics, now func() time.Time) *runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &runner{name: name, logger: logger.With(zap.String("job", name)), metrics: metrics, now: now}
}

func (r *runner) Name() string { return r.name }

func (r *runner) Running() bool { return r.guard.Running() }

// run executes work under the single-flight latch. Panics and errors become
// a failed result; the latch is always released.
func (r *runner) run(ctx context.Context, work func(context.Context) (*Summary, error)) (result RunResult) {
	started := r.now()
	if !r.guard.TryAcquire() {
		r.logger.Info("run skipped; previous run still in progress")
		return RunResult{Job: r.name, Error: ErrAlreadyRunning.Error(), StartedAt: started, FinishedAt: started}
	}
	defer r.guard.Release()

	result = RunResult{Job: r.name, RunID: uuid.NewString(), StartedAt: started}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("run panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", p)
		}
		result.FinishedAt = r.now()
		r.metrics.RecordSchedulerRun(r.name, result.Success, result.FinishedAt.Sub(result.StartedAt))
	}()

	r.logger.Info("run started", zap.String("run_id", result.RunID))
	summary, err := work(ctx)
	result.Results = summary
	if err != nil {
		r.logger.Error("run failed", zap.String("run_id", result.RunID), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.Success = true
	if summary != nil {
		r.logger.Info("run finished",
			zap.String("run_id", result.RunID),
			zap.Int("processed", summary.Processed),
			zap.Int("completed", summary.Completed),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed))
	}
	return result
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
