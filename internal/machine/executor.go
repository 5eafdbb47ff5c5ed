// Package machine is a cooperative, single-pass scheduler for resumable
// state machines. One Tick advances every ready task instance once; a task
// yields by returning a delay or a transition to another named handler.
// There is no preemption and no blocking wait inside a handler body.
package machine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Darruma/protocol/internal/metrics"
)

const defaultErrorRetryDelay = 5 * time.Second

// maxFinishedStatuses bounds the retained terminal statuses. Workflow IDs
// are uuid-fresh per submission, so without a cap the finished map would
// grow for the life of the process.
const maxFinishedStatuses = 1024

// Spec describes a task instance: a unique ID, the starting handler name,
// and the named handler set.
type Spec struct {
	ID       string
	Start    string
	Handlers map[string]HandlerFunc
}

// Status is the externally visible state of an instance, kept after the
// instance finishes so callers can distinguish "failed" from "pending".
type Status struct {
	ID      string
	Handler string
	Done    bool
	Err     error
}

type instance struct {
	spec      Spec
	current   string
	notBefore time.Time
	lastErr   error
}

// Executor owns the registry of running task instances and drives them
// cooperatively. Handlers are invoked strictly sequentially; independent
// instances are interleaved across ticks so one slow chain cannot stall
// the others' scheduling.
type Executor struct {
	clock      Clock
	logger     *slog.Logger
	retryDelay time.Duration

	mu        sync.Mutex
	instances map[string]*instance
	finished  map[string]Status
	// finishedOrder tracks insertion order into finished for FIFO eviction.
	finishedOrder []string
}

func NewExecutor(clock Clock, logger *slog.Logger) *Executor {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		clock:      clock,
		logger:     logger.With("component", "executor"),
		retryDelay: defaultErrorRetryDelay,
		instances:  map[string]*instance{},
		finished:   map[string]Status{},
	}
}

// Register adds a task instance to the registry. The instance becomes
// eligible on the next tick.
func (e *Executor) Register(spec Spec) error {
	if spec.ID == "" {
		return fmt.Errorf("register task: empty id")
	}
	if _, ok := spec.Handlers[spec.Start]; !ok {
		return fmt.Errorf("register task %s: unknown start handler %q", spec.ID, spec.Start)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.instances[spec.ID]; exists {
		return fmt.Errorf("register task %s: already registered", spec.ID)
	}
	e.instances[spec.ID] = &instance{spec: spec, current: spec.Start}
	if _, ok := e.finished[spec.ID]; ok {
		delete(e.finished, spec.ID)
		for i, fid := range e.finishedOrder {
			if fid == spec.ID {
				e.finishedOrder = append(e.finishedOrder[:i], e.finishedOrder[i+1:]...)
				break
			}
		}
	}
	metrics.ExecutorTasks.Set(float64(len(e.instances)))
	e.logger.Debug("task registered", "task", spec.ID, "handler", spec.Start)
	return nil
}

// Cancel removes an instance between invocations. Safe at any time; a
// result arriving from an already-started handler body is still applied to
// the store (all store writes are idempotent) but the instance itself is
// gone and will not run again.
func (e *Executor) Cancel(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instances[id]; !ok {
		return false
	}
	delete(e.instances, id)
	metrics.ExecutorTasks.Set(float64(len(e.instances)))
	e.logger.Debug("task cancelled", "task", id)
	return true
}

// Status reports a live or finished instance.
func (e *Executor) Status(id string) (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inst, ok := e.instances[id]; ok {
		return Status{ID: id, Handler: inst.current, Err: inst.lastErr}, true
	}
	st, ok := e.finished[id]
	return st, ok
}

// Tick advances every ready instance exactly once, in sorted-ID order for
// determinism. Handler errors never escape: an erroring handler is logged
// and retried after the executor's error delay unless it declared itself
// done.
func (e *Executor) Tick(ctx context.Context) {
	metrics.ExecutorTicks.Inc()
	now := e.clock.Now()

	e.mu.Lock()
	ready := make([]*instance, 0, len(e.instances))
	for _, inst := range e.instances {
		if !inst.notBefore.After(now) {
			ready = append(ready, inst)
		}
	}
	e.mu.Unlock()

	sort.Slice(ready, func(i, j int) bool { return ready[i].spec.ID < ready[j].spec.ID })

	for _, inst := range ready {
		if ctx.Err() != nil {
			return
		}
		e.advance(ctx, inst)
	}
}

func (e *Executor) advance(ctx context.Context, inst *instance) {
	id := inst.spec.ID
	handler, ok := inst.spec.Handlers[inst.current]
	if !ok {
		e.logger.Error("task references unknown handler; removing", "task", id, "handler", inst.current)
		e.finish(inst, fmt.Errorf("unknown handler %q", inst.current))
		return
	}

	start := time.Now()
	res, err := handler(&Ctx{Context: ctx, clock: e.clock})
	metrics.ExecutorHandlerLatency.WithLabelValues(id).Observe(time.Since(start).Seconds())

	// Instance fields are mutated under e.mu: Status reads them
	// concurrently. Only the handler call itself runs unlocked.
	e.mu.Lock()
	// The instance may have been cancelled while its handler ran; in that
	// case the result is discarded.
	if e.instances[id] != inst {
		e.mu.Unlock()
		return
	}

	if err != nil {
		inst.lastErr = err
		handlerName := inst.current
		metrics.ExecutorHandlerErrors.WithLabelValues(id).Inc()
		if res.done {
			e.mu.Unlock()
			e.logger.Warn("task failed", "task", id, "handler", handlerName, "error", err)
			e.finish(inst, err)
			return
		}
		delay := res.delay
		if delay <= 0 {
			delay = e.retryDelay
		}
		inst.notBefore = e.clock.Now().Add(delay)
		e.mu.Unlock()
		e.logger.Warn("handler error; retrying", "task", id, "handler", handlerName, "retry_in", delay, "error", err)
		return
	}

	inst.lastErr = nil
	switch {
	case res.done:
		e.mu.Unlock()
		e.logger.Debug("task done", "task", id)
		e.finish(inst, nil)
	case res.transit:
		if _, ok := inst.spec.Handlers[res.transition]; !ok {
			e.mu.Unlock()
			e.logger.Error("transition to unknown handler; removing task", "task", id, "handler", res.transition)
			e.finish(inst, fmt.Errorf("transition to unknown handler %q", res.transition))
			return
		}
		inst.current = res.transition
		inst.notBefore = e.clock.Now().Add(res.delay)
		e.mu.Unlock()
	default:
		inst.notBefore = e.clock.Now().Add(res.delay)
		e.mu.Unlock()
	}
}

func (e *Executor) finish(inst *instance, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instances[inst.spec.ID] != inst {
		return
	}
	delete(e.instances, inst.spec.ID)
	e.finished[inst.spec.ID] = Status{ID: inst.spec.ID, Handler: inst.current, Done: true, Err: err}
	e.finishedOrder = append(e.finishedOrder, inst.spec.ID)
	for len(e.finished) > maxFinishedStatuses && len(e.finishedOrder) > 0 {
		oldest := e.finishedOrder[0]
		e.finishedOrder = e.finishedOrder[1:]
		delete(e.finished, oldest)
	}
	metrics.ExecutorTasks.Set(float64(len(e.instances)))
}

// Run ticks until ctx is cancelled. The resolution bounds how quickly a
// due instance is noticed; handlers are never invoked before their
// requested delay, with no upper-bound promise.
func (e *Executor) Run(ctx context.Context, resolution time.Duration) error {
	if resolution <= 0 {
		resolution = 100 * time.Millisecond
	}
	e.logger.Info("executor started", "resolution", resolution)

	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("executor stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}
