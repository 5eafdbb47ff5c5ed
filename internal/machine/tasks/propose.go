package tasks

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/update"
)

// Propose submits a price proposal for a mirrored request and polls for
// its confirmation, then refreshes the request record.
type Propose struct {
	updater *update.Updater
	key     model.RequestKey
	price   *big.Int

	// memory
	txHash   string
	submits  budget
	confirms budget
}

func NewPropose(u *update.Updater, key model.RequestKey, price *big.Int) (machine.Spec, error) {
	if u == nil {
		return machine.Spec{}, fatalf("propose: updater is required")
	}
	if !key.Valid() {
		return machine.Spec{}, fatalf("propose: incomplete request key %q", key.ID())
	}
	if price == nil {
		return machine.Spec{}, fatalf("propose: price is required")
	}
	if _, err := u.Client(key.Chain); err != nil {
		return machine.Spec{}, fatalf("propose: %v", err)
	}
	w := &Propose{
		updater:  u,
		key:      key,
		price:    price,
		submits:  budget{max: defaultMaxAttempts},
		confirms: budget{max: defaultConfirmAttempts},
	}
	return machine.Spec{
		ID:    "wf:propose:" + uuid.NewString(),
		Start: "submit",
		Handlers: map[string]machine.HandlerFunc{
			"submit":  w.submit,
			"confirm": w.confirm,
		},
	}, nil
}

func (w *Propose) submit(ctx *machine.Ctx) (machine.Result, error) {
	req, err := w.updater.Store().Read().Request(w.key)
	if err != nil {
		return machine.Done(), fatalf("propose: request %s not mirrored; set it active first", w.key.ID())
	}
	if req.State != model.StateRequested {
		return machine.Done(), fmt.Errorf("propose: request %s is %s, not Requested", w.key.ID(), req.State)
	}

	client, err := w.updater.Client(w.key.Chain)
	if err != nil {
		return machine.Done(), err
	}
	txHash, err := client.ProposePrice(ctx, req, w.price)
	if err != nil {
		if w.submits.spend(err) {
			return machine.Result{}, err
		}
		return machine.Done(), err
	}
	w.txHash = txHash
	return machine.TransitionAfter("confirm", defaultConfirmInterval), nil
}

func (w *Propose) confirm(ctx *machine.Ctx) (machine.Result, error) {
	client, err := w.updater.Client(w.key.Chain)
	if err != nil {
		return machine.Done(), err
	}

	status, err := client.TxStatus(ctx, w.txHash)
	if err != nil {
		if w.confirms.spend(err) {
			return machine.Result{}, err
		}
		return machine.Done(), err
	}

	switch status {
	case model.TxStatusPending:
		w.confirms.attempts++
		if w.confirms.attempts >= w.confirms.max {
			return machine.Done(), fmt.Errorf("propose %s: confirmation timed out", w.txHash)
		}
		return ctx.Sleep(defaultConfirmInterval), nil
	case model.TxStatusFailed:
		return machine.Done(), fmt.Errorf("propose %s: transaction reverted", w.txHash)
	}

	if _, err := w.updater.RefreshRequest(ctx, w.key); err != nil {
		// Confirmed on chain; the active-request poller will catch up.
		return machine.Done(), nil
	}
	return machine.Done(), nil
}
