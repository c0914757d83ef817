package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/registrations/internal/metrics"
)

// TaskOutcome records the completion state of one background unit of work.
// Creation-time side effects are fire-and-forget by design; outcomes make
// their results observable to operators and tests instead of leaving only a
// log line behind.
type TaskOutcome struct {
	ID         uuid.UUID
	Name       string
	Err        error
	FinishedAt time.Time
}

// taskRunner launches the lifecycle's background units of work and keeps a
// bounded window of their outcomes. Tasks run detached from the request
// context: the caller's response must not await or cancel them.
type taskRunner struct {
	logger  *slog.Logger
	metrics metrics.BusinessMetrics

	wg sync.WaitGroup

	mu          sync.Mutex
	outcomes    []TaskOutcome
	maxOutcomes int
}

func newTaskRunner(logger *slog.Logger, businessMetrics metrics.BusinessMetrics, maxOutcomes int) *taskRunner {
	return &taskRunner{
		logger:      logger,
		metrics:     businessMetrics,
		maxOutcomes: maxOutcomes,
	}
}

// Go runs fn in a new goroutine with a context detached from the caller's
// cancellation. The task's error is logged and recorded, never returned.
func (r *taskRunner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskID := uuid.New()
	taskCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		err := fn(taskCtx)
		status := "success"
		if err != nil {
			status = "error"
			r.logger.Error("background task failed",
				slog.String("task", name),
				slog.String("task_id", taskID.String()),
				slog.Any("error", err),
			)
		}
		if r.metrics != nil {
			r.metrics.RecordOperation(taskCtx, "registration", name, status)
		}

		r.record(TaskOutcome{
			ID:         taskID,
			Name:       name,
			Err:        err,
			FinishedAt: time.Now().UTC(),
		})
	}()
}

// Wait blocks until every launched task has completed.
func (r *taskRunner) Wait() {
	r.wg.Wait()
}

// Outcomes returns a copy of the recorded outcome window, newest last.
func (r *taskRunner) Outcomes() []TaskOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TaskOutcome(nil), r.outcomes...)
}

func (r *taskRunner) record(outcome TaskOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, outcome)
	if len(r.outcomes) > r.maxOutcomes {
		r.outcomes = r.outcomes[len(r.outcomes)-r.maxOutcomes:]
	}
}
