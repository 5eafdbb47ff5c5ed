package store

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Darruma/protocol/internal/domain/model"
)

// Txn is the mutation view handed to Store.Write callbacks. It mutates a
// draft snapshot; nothing is visible to readers until the callback returns
// nil and Write swaps the snapshot pointer.
//
// The builder is typed per (chain, category, entity, field) path; there is
// no arbitrary deep mutation.
type Txn struct {
	draft *snapshot
	// One ChainTxn per chain for the whole transaction, so repeated
	// Chain(id) calls alias the same clone and never orphan each other's
	// writes.
	chains map[model.ChainID]*ChainTxn
	sealed bool
}

func newTxn(cur *snapshot) *Txn {
	draft := &snapshot{
		chains:    make(map[model.ChainID]*chainSlice, len(cur.chains)),
		selection: cur.selection,
	}
	// Chain slices are cloned lazily on first touch.
	for id, slice := range cur.chains {
		draft.chains[id] = slice
	}
	return &Txn{draft: draft, chains: map[model.ChainID]*ChainTxn{}}
}

func (t *Txn) checkOpen() {
	if t.sealed {
		panic("store: Txn used outside its Write call")
	}
}

// Chain returns the mutation view for one chain's slice, creating the slice
// on first touch. The same *ChainTxn is returned for every call with the
// same id within one transaction.
func (t *Txn) Chain(id model.ChainID) *ChainTxn {
	t.checkOpen()
	if ct, ok := t.chains[id]; ok {
		return ct
	}
	var ct *ChainTxn
	if base, ok := t.draft.chains[id]; ok {
		ct = &ChainTxn{txn: t, id: id, slice: base}
	} else {
		slice := newChainSlice()
		t.draft.chains[id] = slice
		ct = &ChainTxn{txn: t, id: id, slice: slice, owned: true}
	}
	t.chains[id] = ct
	return ct
}

// SetActiveChain records the externally selected current chain.
func (t *Txn) SetActiveChain(id model.ChainID) {
	t.checkOpen()
	t.draft.selection.chain = id
}

// SetActiveAccount records the externally selected current account.
func (t *Txn) SetActiveAccount(address string) {
	t.checkOpen()
	t.draft.selection.account = strings.ToLower(address)
}

// SetActiveRequest records the externally selected current request.
func (t *Txn) SetActiveRequest(key model.RequestKey) error {
	t.checkOpen()
	if !key.Valid() {
		return fmt.Errorf("set active request: incomplete key %q", key.ID())
	}
	t.draft.selection.request = &key
	return nil
}

// ClearActiveRequest drops the current request selection.
func (t *Txn) ClearActiveRequest() {
	t.checkOpen()
	t.draft.selection.request = nil
}

// ChainTxn mutates a single chain's slice of the draft.
type ChainTxn struct {
	txn   *Txn
	id    model.ChainID
	slice *chainSlice
	owned bool
}

// mutable clones the underlying slice on first mutation so the committed
// snapshot this draft was forked from stays untouched.
func (ct *ChainTxn) mutable() *chainSlice {
	ct.txn.checkOpen()
	if !ct.owned {
		ct.slice = ct.slice.clone()
		ct.txn.draft.chains[ct.id] = ct.slice
		ct.owned = true
	}
	return ct.slice
}

// SetRequest stores or refreshes one request record.
func (ct *ChainTxn) SetRequest(r model.Request) error {
	if !r.Key.Valid() {
		return fmt.Errorf("set request: incomplete key %q", r.Key.ID())
	}
	if r.Key.Chain != ct.id {
		return fmt.Errorf("set request: key chain %s does not match slice chain %s", r.Key.Chain, ct.id)
	}
	ct.mutable().requests[r.Key.ID()] = r
	return nil
}

// SetErc20 stores token metadata.
func (ct *ChainTxn) SetErc20(meta model.Erc20) error {
	if meta.Address == "" {
		return fmt.Errorf("set erc20: empty address")
	}
	if meta.Chain != ct.id {
		return fmt.Errorf("set erc20: token chain %s does not match slice chain %s", meta.Chain, ct.id)
	}
	ct.mutable().erc20s[model.TokenID(ct.id, meta.Address)] = meta
	return nil
}

// SetBalance updates a single (token, account) balance entry.
func (ct *ChainTxn) SetBalance(token, account string, amount *big.Int) {
	ct.mutable().balances[balanceKey(token, account)] = copyAmount(amount)
}

// SetAllowance updates a single (token, owner, spender) allowance entry.
func (ct *ChainTxn) SetAllowance(token, owner, spender string, amount *big.Int) {
	ct.mutable().allowances[allowanceKey(token, owner, spender)] = copyAmount(amount)
}

// SetCurrentTime records the chain's latest block timestamp.
func (ct *ChainTxn) SetCurrentTime(ts time.Time) {
	s := ct.mutable()
	s.currentTime = ts
	s.hasCurrentTime = true
}

// SetLatestBlock records the chain's head block number.
func (ct *ChainTxn) SetLatestBlock(n int64) {
	s := ct.mutable()
	s.latestBlock = n
	s.hasLatestBlock = true
}

// SetEventCheckpoint advances the last-fully-scanned block. The checkpoint
// only moves forward; a backward move is a caller bug and aborts the write.
func (ct *ChainTxn) SetEventCheckpoint(n int64) error {
	s := ct.slice
	if s.hasCheckpoint && n < s.checkpoint {
		return fmt.Errorf("set event checkpoint: %d is behind current checkpoint %d", n, s.checkpoint)
	}
	s = ct.mutable()
	s.checkpoint = n
	s.hasCheckpoint = true
	return nil
}

func balanceKey(token, account string) string {
	return strings.ToLower(token) + "|" + strings.ToLower(account)
}

func allowanceKey(token, owner, spender string) string {
	return strings.ToLower(token) + "|" + strings.ToLower(owner) + "|" + strings.ToLower(spender)
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
