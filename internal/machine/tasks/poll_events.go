package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/store"
	"github.com/Darruma/protocol/internal/stream"
	"github.com/Darruma/protocol/internal/update"
)

// EventStreamName is the stream applied oracle events are published to.
const EventStreamName = "oracle:events"

// EventPollerID names the per-chain new-event poller instance.
func EventPollerID(chain model.ChainID) string {
	return "poll:events:" + chain.String()
}

// EventPollerConfig parameterizes one chain's new-event poller.
type EventPollerConfig struct {
	Chain model.ChainID
	// StartBlock, when > 0, is the first block to watch. Zero means watch
	// from the head seen on the first tick — no historical backfill.
	StartBlock int64
	// Interval between ticks. Zero selects the 50s default.
	Interval time.Duration
}

// EventPoller maintains the forward-only event watermark for one chain.
// A failed range is retried whole on the next tick: the watermark only
// moves after a successful fetch-and-fold, so there are never gaps, only
// harmless overlap (the event fold is set-based).
type EventPoller struct {
	updater   *update.Updater
	transport stream.Transport
	cfg       EventPollerConfig

	// memory
	mu        sync.Mutex
	lastBlock int64
	hasLast   bool
	lastErr   error
}

func NewEventPoller(u *update.Updater, transport stream.Transport, cfg EventPollerConfig) (machine.Spec, *EventPoller, error) {
	if u == nil {
		return machine.Spec{}, nil, fatalf("event poller: updater is required")
	}
	if cfg.Chain == 0 {
		return machine.Spec{}, nil, fatalf("event poller: chain is required")
	}
	if _, err := u.Client(cfg.Chain); err != nil {
		return machine.Spec{}, nil, fatalf("event poller: %v", err)
	}
	if cfg.StartBlock < 0 {
		return machine.Spec{}, nil, fatalf("event poller: negative start block %d", cfg.StartBlock)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultEventPollInterval
	}
	p := &EventPoller{updater: u, transport: transport, cfg: cfg}
	return machine.Spec{
		ID:       EventPollerID(cfg.Chain),
		Start:    "poll",
		Handlers: map[string]machine.HandlerFunc{"poll": p.poll},
	}, p, nil
}

// LastBlock returns the watermark, false before the first successful fetch.
func (p *EventPoller) LastBlock() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastBlock, p.hasLast
}

// LastErr exposes the most recent tick error for inspection.
func (p *EventPoller) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *EventPoller) poll(ctx *machine.Ctx) (machine.Result, error) {
	// The checkpoint fallback chain is memory, explicit start, then the
	// store's last known head. It must be resolved before this tick's head
	// read commits a fresh latest-block value.
	p.mu.Lock()
	checkpoint, haveCheckpoint := p.lastBlock, p.hasLast
	p.mu.Unlock()
	if !haveCheckpoint && p.cfg.StartBlock > 0 {
		checkpoint, haveCheckpoint = p.cfg.StartBlock, true
	}
	if !haveCheckpoint {
		if lb, err := p.updater.Store().Read().LatestBlock(p.cfg.Chain); err == nil {
			checkpoint, haveCheckpoint = lb, true
		} else if !store.IsNotFound(err) {
			p.recordErr(err)
			return ctx.Sleep(p.cfg.Interval), nil
		}
	}

	head, err := p.updater.RefreshLatestBlock(ctx, p.cfg.Chain)
	if err != nil {
		p.recordErr(err)
		return ctx.Sleep(p.cfg.Interval), nil
	}
	if !haveCheckpoint {
		// First sight of this chain: adopt the head without a query and
		// without committing it to memory, per the no-backfill contract.
		p.recordErr(nil)
		return ctx.Sleep(p.cfg.Interval), nil
	}
	if head == checkpoint {
		// Zero-width query avoided; the watermark is untouched.
		p.recordErr(nil)
		return ctx.Sleep(p.cfg.Interval), nil
	}
	if head < checkpoint {
		p.recordErr(fmt.Errorf("head %d behind checkpoint %d on chain %s", head, checkpoint, p.cfg.Chain))
		return ctx.Sleep(p.cfg.Interval), nil
	}

	applied, err := p.updater.FetchEvents(ctx, p.cfg.Chain, checkpoint, head)
	if err != nil {
		// Watermark unmoved: the same range is retried next tick.
		p.recordErr(err)
		return ctx.Sleep(p.cfg.Interval), nil
	}

	p.mu.Lock()
	p.lastBlock, p.hasLast = head, true
	p.lastErr = nil
	p.mu.Unlock()

	if p.transport != nil {
		for _, evt := range applied {
			if err := p.transport.PublishJSON(ctx, EventStreamName, evt); err != nil {
				// Publication is best-effort; the store already holds the fold.
				p.recordErr(err)
				break
			}
		}
	}

	return ctx.Sleep(p.cfg.Interval), nil
}

func (p *EventPoller) recordErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}
