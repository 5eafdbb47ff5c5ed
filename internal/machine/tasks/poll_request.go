package tasks

import (
	"sync"
	"time"

	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/update"
)

// ActiveRequestPollerID is the registry ID of the single global
// active-request refresher instance.
const ActiveRequestPollerID = "poll:active-request"

// ActiveRequestPoller keeps the currently selected request fresh. Terminal
// states (Invalid, Settled) never change on chain, so those ticks only
// refresh the chain clock.
type ActiveRequestPoller struct {
	updater  *update.Updater
	interval time.Duration

	// memory
	mu      sync.Mutex
	lastErr error
}

// NewActiveRequestPoller builds the poller spec. interval <= 0 selects
// the 30s default.
func NewActiveRequestPoller(u *update.Updater, interval time.Duration) (machine.Spec, *ActiveRequestPoller, error) {
	if u == nil {
		return machine.Spec{}, nil, fatalf("active-request poller: updater is required")
	}
	if interval <= 0 {
		interval = defaultRequestPollInterval
	}
	p := &ActiveRequestPoller{updater: u, interval: interval}
	return machine.Spec{
		ID:       ActiveRequestPollerID,
		Start:    "poll",
		Handlers: map[string]machine.HandlerFunc{"poll": p.poll},
	}, p, nil
}

// LastErr exposes the most recent tick error for inspection.
func (p *ActiveRequestPoller) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *ActiveRequestPoller) recordErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

// poll swallows every error: a stale view beats a dead poller.
func (p *ActiveRequestPoller) poll(ctx *machine.Ctx) (machine.Result, error) {
	reader := p.updater.Store().Read()

	key, err := reader.ActiveRequest()
	if err != nil {
		// Nothing selected yet; keep idling.
		p.recordErr(nil)
		return ctx.Sleep(p.interval), nil
	}

	req, err := reader.Request(key)
	if err != nil {
		p.recordErr(err)
		return ctx.Sleep(p.interval), nil
	}

	if !req.State.Terminal() {
		if _, err := p.updater.RefreshRequest(ctx, key); err != nil {
			p.recordErr(err)
			return ctx.Sleep(p.interval), nil
		}
	}

	// The chain clock is refreshed even for terminal requests; liveness
	// countdowns elsewhere depend on it.
	if err := p.updater.RefreshCurrentTime(ctx, key.Chain); err != nil {
		p.recordErr(err)
		return ctx.Sleep(p.interval), nil
	}

	p.recordErr(nil)
	return ctx.Sleep(p.interval), nil
}
