package tasks

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/update"
)

// Dispute challenges the current proposal on a mirrored request and
// polls for its confirmation.
type Dispute struct {
	updater *update.Updater
	key     model.RequestKey

	// memory
	txHash   string
	submits  budget
	confirms budget
}

func NewDispute(u *update.Updater, key model.RequestKey) (machine.Spec, error) {
	if u == nil {
		return machine.Spec{}, fatalf("dispute: updater is required")
	}
	if !key.Valid() {
		return machine.Spec{}, fatalf("dispute: incomplete request key %q", key.ID())
	}
	if _, err := u.Client(key.Chain); err != nil {
		return machine.Spec{}, fatalf("dispute: %v", err)
	}
	w := &Dispute{
		updater:  u,
		key:      key,
		submits:  budget{max: defaultMaxAttempts},
		confirms: budget{max: defaultConfirmAttempts},
	}
	return machine.Spec{
		ID:    "wf:dispute:" + uuid.NewString(),
		Start: "submit",
		Handlers: map[string]machine.HandlerFunc{
			"submit":  w.submit,
			"confirm": w.confirm,
		},
	}, nil
}

func (w *Dispute) submit(ctx *machine.Ctx) (machine.Result, error) {
	req, err := w.updater.Store().Read().Request(w.key)
	if err != nil {
		return machine.Done(), fatalf("dispute: request %s not mirrored; set it active first", w.key.ID())
	}
	if req.State != model.StateProposed {
		return machine.Done(), fmt.Errorf("dispute: request %s is %s, not Proposed", w.key.ID(), req.State)
	}

	client, err := w.updater.Client(w.key.Chain)
	if err != nil {
		return machine.Done(), err
	}
	txHash, err := client.DisputePrice(ctx, req)
	if err != nil {
		if w.submits.spend(err) {
			return machine.Result{}, err
		}
		return machine.Done(), err
	}
	w.txHash = txHash
	return machine.TransitionAfter("confirm", defaultConfirmInterval), nil
}

func (w *Dispute) confirm(ctx *machine.Ctx) (machine.Result, error) {
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
			return machine.Done(), fmt.Errorf("dispute %s: confirmation timed out", w.txHash)
		}
		return ctx.Sleep(defaultConfirmInterval), nil
	case model.TxStatusFailed:
		return machine.Done(), fmt.Errorf("dispute %s: transaction reverted", w.txHash)
	}

	if _, err := w.updater.RefreshRequest(ctx, w.key); err != nil {
		return machine.Done(), nil
	}
	return machine.Done(), nil
}
