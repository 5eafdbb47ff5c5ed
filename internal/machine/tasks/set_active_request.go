package tasks

import (
	"github.com/google/uuid"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/store"
	"github.com/Darruma/protocol/internal/update"
)

// SetActiveRequestConfig carries the full request coordinates. The raw
// ancillary bytes are required: the contract read is keyed on them, the
// store key only on their hash.
type SetActiveRequestConfig struct {
	Chain         model.ChainID
	Requester     string
	Identifier    string
	Timestamp     int64
	AncillaryData []byte
}

// SetActiveRequest fetches the addressed request into the store, then
// points the active-request selection at it.
type SetActiveRequest struct {
	updater *update.Updater
	cfg     SetActiveRequestConfig

	// memory
	key     model.RequestKey
	retries budget
}

func NewSetActiveRequest(u *update.Updater, cfg SetActiveRequestConfig) (machine.Spec, error) {
	if u == nil {
		return machine.Spec{}, fatalf("set-active-request: updater is required")
	}
	probe := model.RequestKey{
		Chain:      cfg.Chain,
		Requester:  cfg.Requester,
		Identifier: cfg.Identifier,
		Timestamp:  cfg.Timestamp,
	}
	if !probe.Valid() {
		return machine.Spec{}, fatalf("set-active-request: incomplete coordinates %q", probe.ID())
	}
	if _, err := u.Client(cfg.Chain); err != nil {
		return machine.Spec{}, fatalf("set-active-request: %v", err)
	}
	w := &SetActiveRequest{
		updater: u,
		cfg:     cfg,
		retries: budget{max: defaultMaxAttempts},
	}
	return machine.Spec{
		ID:    "wf:set-active-request:" + uuid.NewString(),
		Start: "fetch",
		Handlers: map[string]machine.HandlerFunc{
			"fetch":  w.fetch,
			"select": w.selectRequest,
		},
	}, nil
}

func (w *SetActiveRequest) fetch(ctx *machine.Ctx) (machine.Result, error) {
	req, err := w.updater.FetchRequest(ctx, w.cfg.Chain, w.cfg.Requester, w.cfg.Identifier, w.cfg.Timestamp, w.cfg.AncillaryData)
	if err != nil {
		if w.retries.spend(err) {
			return machine.Result{}, err
		}
		return machine.Done(), err
	}
	w.key = req.Key
	return machine.Transition("select"), nil
}

func (w *SetActiveRequest) selectRequest(ctx *machine.Ctx) (machine.Result, error) {
	err := w.updater.Store().Write(func(tx *store.Txn) error {
		return tx.SetActiveRequest(w.key)
	})
	if err != nil {
		return machine.Done(), err
	}
	return machine.Done(), nil
}
