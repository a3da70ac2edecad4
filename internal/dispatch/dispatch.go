// Package dispatch fans one change event out to all registered update
// tasks, runs them to completion concurrently, and collects per-task
// results without letting one failure abort the others.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/halvard/tally/internal/apperr"
	"github.com/halvard/tally/internal/event"
)

// Task is one independent aggregate update applied per event.
type Task interface {
	// Name identifies the task in results and logs.
	Name() string
	// Apply applies the event. Errors wrapping apperr.ErrSkip mark a
	// deliberate no-op; any other error is a task failure.
	Apply(ctx context.Context, ev event.Event) error
}

// Result is the outcome of one task for one event.
type Result struct {
	Task    string
	Skipped bool
	Err     error
}

// Summary counts results by outcome.
type Summary struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Summarize tallies a result set.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Skipped:
			s.Skipped++
		default:
			s.Applied++
		}
	}
	return s
}

// Dispatcher runs a fixed set of tasks for each incoming event.
type Dispatcher struct {
	logger *slog.Logger
	tasks  []Task
}

// New creates a dispatcher over the given tasks.
func New(logger *slog.Logger, tasks ...Task) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, tasks: tasks}
}

// Dispatch runs every task concurrently and waits for all of them. Skips
// are logged at debug level and swallowed; failures are logged per task and
// returned in the result slice, never as an overall error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) []Result {
	id := uuid.NewString()
	d.logger.Info("dispatch: event received",
		slog.String("invocation", id),
		slog.String("kind", string(ev.Kind)),
		slog.String("collection", ev.Collection))

	results := make([]Result, len(d.tasks))
	var wg sync.WaitGroup
	for i, task := range d.tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			results[i] = d.run(ctx, id, task, ev)
		}(i, task)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) run(ctx context.Context, id string, task Task, ev event.Event) (res Result) {
	res.Task = task.Name()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("dispatch: task %s panicked: %v", res.Task, p)
			d.logger.Error("dispatch: task panicked",
				slog.String("invocation", id),
				slog.String("task", res.Task),
				slog.Any("panic", p))
		}
	}()

	err := task.Apply(ctx, ev)
	switch {
	case err == nil:
		d.logger.Info("dispatch: task applied",
			slog.String("invocation", id),
			slog.String("task", res.Task))
	case errors.Is(err, apperr.ErrSkip):
		res.Skipped = true
		d.logger.Debug("dispatch: task skipped",
			slog.String("invocation", id),
			slog.String("task", res.Task),
			slog.String("reason", err.Error()))
	default:
		res.Err = err
		d.logger.Error("dispatch: task failed",
			slog.String("invocation", id),
			slog.String("task", res.Task),
			slog.String("error", err.Error()))
	}
	return res
}
