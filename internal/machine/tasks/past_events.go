package tasks

import (
	"github.com/google/uuid"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/update"
)

// FetchPastEventsConfig bounds a historical catch-up run.
type FetchPastEventsConfig struct {
	Chain model.ChainID
	From  int64
	To    int64
	// ChunkSize caps one query's block span. Zero selects the default.
	ChunkSize int64
}

// FetchPastEvents walks [From, To] in bounded chunks, yielding to the
// executor between chunks so long backfills never monopolize a tick. It
// folds through the backfill path, which leaves the new-event poller's
// forward-only watermark alone.
type FetchPastEvents struct {
	updater *update.Updater
	cfg     FetchPastEventsConfig

	// memory
	cursor  int64
	retries budget
}

func NewFetchPastEvents(u *update.Updater, cfg FetchPastEventsConfig) (machine.Spec, *FetchPastEvents, error) {
	if u == nil {
		return machine.Spec{}, nil, fatalf("fetch-past-events: updater is required")
	}
	if cfg.From < 0 || cfg.To < cfg.From {
		return machine.Spec{}, nil, fatalf("fetch-past-events: invalid range [%d,%d]", cfg.From, cfg.To)
	}
	if _, err := u.Client(cfg.Chain); err != nil {
		return machine.Spec{}, nil, fatalf("fetch-past-events: %v", err)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultEventChunk
	}
	w := &FetchPastEvents{
		updater: u,
		cfg:     cfg,
		cursor:  cfg.From,
		retries: budget{max: defaultMaxAttempts},
	}
	return machine.Spec{
		ID:       "wf:fetch-past-events:" + uuid.NewString(),
		Start:    "fetch",
		Handlers: map[string]machine.HandlerFunc{"fetch": w.fetch},
	}, w, nil
}

// Cursor reports the next unfetched block, for progress inspection.
func (w *FetchPastEvents) Cursor() int64 {
	return w.cursor
}

func (w *FetchPastEvents) fetch(ctx *machine.Ctx) (machine.Result, error) {
	if w.cursor > w.cfg.To {
		return machine.Done(), nil
	}

	end := w.cursor + w.cfg.ChunkSize - 1
	if end > w.cfg.To {
		end = w.cfg.To
	}

	if _, err := w.updater.BackfillEvents(ctx, w.cfg.Chain, w.cursor, end); err != nil {
		if w.retries.spend(err) {
			return machine.Result{}, err
		}
		return machine.Done(), err
	}

	w.cursor = end + 1
	w.retries = budget{max: defaultMaxAttempts} // fresh budget per chunk
	if w.cursor > w.cfg.To {
		return machine.Done(), nil
	}
	return machine.Result{}, nil // yield; next chunk on the next tick
}
