package tasks

import (
	"github.com/google/uuid"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/store"
	"github.com/Darruma/protocol/internal/update"
)

// SwitchChain verifies the target chain is reachable before flipping the
// active-chain selection, so the UI never points at a dead chain.
type SwitchChain struct {
	updater *update.Updater
	chain   model.ChainID

	// memory
	retries budget
}

func NewSwitchChain(u *update.Updater, chain model.ChainID) (machine.Spec, error) {
	if u == nil {
		return machine.Spec{}, fatalf("switch-chain: updater is required")
	}
	if _, err := u.Client(chain); err != nil {
		return machine.Spec{}, fatalf("switch-chain: %v", err)
	}
	w := &SwitchChain{
		updater: u,
		chain:   chain,
		retries: budget{max: defaultMaxAttempts},
	}
	return machine.Spec{
		ID:    "wf:switch-chain:" + uuid.NewString(),
		Start: "verify",
		Handlers: map[string]machine.HandlerFunc{
			"verify": w.verify,
			"apply":  w.apply,
		},
	}, nil
}

func (w *SwitchChain) verify(ctx *machine.Ctx) (machine.Result, error) {
	if _, err := w.updater.RefreshLatestBlock(ctx, w.chain); err != nil {
		if w.retries.spend(err) {
			return machine.Result{}, err
		}
		return machine.Done(), err
	}
	return machine.Transition("apply"), nil
}

func (w *SwitchChain) apply(ctx *machine.Ctx) (machine.Result, error) {
	err := w.updater.Store().Write(func(tx *store.Txn) error {
		tx.SetActiveChain(w.chain)
		return nil
	})
	if err != nil {
		return machine.Done(), err
	}
	return machine.Done(), nil
}
