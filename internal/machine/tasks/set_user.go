package tasks

import (
	"github.com/google/uuid"

	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/store"
	"github.com/Darruma/protocol/internal/update"
)

// SetUser switches the active account and, when a request is selected,
// refreshes the new account's balance and allowance in its currency.
type SetUser struct {
	updater *update.Updater
	account string

	// memory
	retries budget
}

func NewSetUser(u *update.Updater, account string) (machine.Spec, error) {
	if u == nil {
		return machine.Spec{}, fatalf("set-user: updater is required")
	}
	if account == "" {
		return machine.Spec{}, fatalf("set-user: account is required")
	}
	w := &SetUser{
		updater: u,
		account: account,
		retries: budget{max: defaultMaxAttempts},
	}
	return machine.Spec{
		ID:    "wf:set-user:" + uuid.NewString(),
		Start: "apply",
		Handlers: map[string]machine.HandlerFunc{
			"apply":   w.apply,
			"refresh": w.refresh,
		},
	}, nil
}

func (w *SetUser) apply(ctx *machine.Ctx) (machine.Result, error) {
	if err := w.updater.Store().Write(func(tx *store.Txn) error {
		tx.SetActiveAccount(w.account)
		return nil
	}); err != nil {
		return machine.Done(), err
	}

	reader := w.updater.Store().Read()
	key, err := reader.ActiveRequest()
	if err != nil {
		return machine.Done(), nil // no request selected, nothing to refresh
	}
	req, err := reader.Request(key)
	if err != nil || req.Currency == "" {
		return machine.Done(), nil
	}
	return machine.Transition("refresh"), nil
}

func (w *SetUser) refresh(ctx *machine.Ctx) (machine.Result, error) {
	reader := w.updater.Store().Read()
	key, err := reader.ActiveRequest()
	if err != nil {
		return machine.Done(), nil
	}
	req, err := reader.Request(key)
	if err != nil {
		return machine.Done(), nil
	}

	client, err := w.updater.Client(key.Chain)
	if err != nil {
		return machine.Done(), err
	}

	if err := w.updater.RefreshBalance(ctx, key.Chain, req.Currency, w.account); err != nil {
		return w.step(err)
	}
	if err := w.updater.RefreshAllowance(ctx, key.Chain, req.Currency, w.account, client.OracleAddress()); err != nil {
		return w.step(err)
	}
	return machine.Done(), nil
}

// step retries a transient failure within the workflow budget.
func (w *SetUser) step(err error) (machine.Result, error) {
	if w.retries.spend(err) {
		return machine.Result{}, err
	}
	return machine.Done(), err
}
