package tasks

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/update"
)

// ApproveConfig parameterizes a collateral approval. Spender defaults to
// the chain's oracle contract.
type ApproveConfig struct {
	Chain   model.ChainID
	Token   string
	Amount  *big.Int
	Spender string
}

// Approve submits an ERC-20 approval and polls for its confirmation,
// then refreshes the owner's tracked allowance.
type Approve struct {
	updater *update.Updater
	cfg     ApproveConfig

	// memory
	owner    string
	txHash   string
	submits  budget
	confirms budget
}

func NewApprove(u *update.Updater, cfg ApproveConfig) (machine.Spec, error) {
	if u == nil {
		return machine.Spec{}, fatalf("approve: updater is required")
	}
	if cfg.Token == "" {
		return machine.Spec{}, fatalf("approve: token is required")
	}
	if cfg.Amount == nil || cfg.Amount.Sign() < 0 {
		return machine.Spec{}, fatalf("approve: amount must be non-negative")
	}
	client, err := u.Client(cfg.Chain)
	if err != nil {
		return machine.Spec{}, fatalf("approve: %v", err)
	}
	if cfg.Spender == "" {
		cfg.Spender = client.OracleAddress()
	}
	w := &Approve{
		updater:  u,
		cfg:      cfg,
		submits:  budget{max: defaultMaxAttempts},
		confirms: budget{max: defaultConfirmAttempts},
	}
	return machine.Spec{
		ID:    "wf:approve:" + uuid.NewString(),
		Start: "submit",
		Handlers: map[string]machine.HandlerFunc{
			"submit":  w.submit,
			"confirm": w.confirm,
		},
	}, nil
}

func (w *Approve) submit(ctx *machine.Ctx) (machine.Result, error) {
	owner, err := w.updater.Store().Read().ActiveAccount()
	if err != nil {
		return machine.Done(), fatalf("approve: no active account selected")
	}
	w.owner = owner

	client, err := w.updater.Client(w.cfg.Chain)
	if err != nil {
		return machine.Done(), err
	}
	txHash, err := client.Approve(ctx, w.cfg.Token, w.cfg.Spender, w.cfg.Amount)
	if err != nil {
		if w.submits.spend(err) {
			return machine.Result{}, err
		}
		return machine.Done(), err
	}
	w.txHash = txHash
	return machine.TransitionAfter("confirm", defaultConfirmInterval), nil
}

func (w *Approve) confirm(ctx *machine.Ctx) (machine.Result, error) {
	client, err := w.updater.Client(w.cfg.Chain)
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
			return machine.Done(), fmt.Errorf("approve %s: confirmation timed out", w.txHash)
		}
		return ctx.Sleep(defaultConfirmInterval), nil
	case model.TxStatusFailed:
		return machine.Done(), fmt.Errorf("approve %s: transaction reverted", w.txHash)
	}

	// Confirmed. The allowance refresh is best-effort; the next balance
	// poll would repair it anyway.
	_ = w.updater.RefreshAllowance(ctx, w.cfg.Chain, w.cfg.Token, w.owner, w.cfg.Spender)
	return machine.Done(), nil
}
