package machine

import (
	"context"
	"time"
)

// Result is a handler's instruction to the executor: stay on the current
// handler for at least a delay, switch to a named handler, or finish.
type Result struct {
	delay      time.Duration
	transition string
	transit    bool
	done       bool
}

// Delay keeps the instance on its current handler; the handler is not
// re-invoked before the delay elapses.
func Delay(d time.Duration) Result {
	return Result{delay: d}
}

// Transition switches the instance to another named handler. The task's
// memory is untouched; it belongs to the instance, not the handler.
func Transition(handler string) Result {
	return Result{transition: handler, transit: true}
}

// TransitionAfter switches handlers once the delay has elapsed.
func TransitionAfter(handler string, d time.Duration) Result {
	return Result{transition: handler, transit: true, delay: d}
}

// Done removes the instance from the registry.
func Done() Result {
	return Result{done: true}
}

// Ctx is the per-invocation capability object passed to handlers. It
// carries cancellation (the embedded context) and the executor's clock;
// suspension is expressed by returning a Result, never by blocking.
type Ctx struct {
	context.Context
	clock Clock
}

// Now returns the scheduler's current time.
func (c *Ctx) Now() time.Time { return c.clock.Now() }

// Sleep is cooperative: it returns the delay for the handler to hand back
// to the executor instead of blocking.
func (c *Ctx) Sleep(d time.Duration) Result { return Delay(d) }

// HandlerFunc is one named state of a task. Params and memory live on the
// task value whose methods are the handlers, so memory is owned exclusively
// by that instance.
type HandlerFunc func(ctx *Ctx) (Result, error)
