package store

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/Darruma/protocol/internal/domain/model"
)

// Reader is a pure-lookup view over one immutable snapshot. Lookups for
// data not yet fetched return a NotFoundError.
type Reader struct {
	snap *snapshot
}

func (r *Reader) chain(id model.ChainID) (*chainSlice, error) {
	slice, ok := r.snap.chains[id]
	if !ok {
		return nil, notFound(fmt.Sprintf("chain/%s", id))
	}
	return slice, nil
}

// Request returns the mirrored record for key.
func (r *Reader) Request(key model.RequestKey) (model.Request, error) {
	slice, err := r.chain(key.Chain)
	if err != nil {
		return model.Request{}, err
	}
	req, ok := slice.requests[key.ID()]
	if !ok {
		return model.Request{}, notFound(fmt.Sprintf("chain/%s/request/%s", key.Chain, key.ID()))
	}
	return req, nil
}

// Erc20 returns token metadata for a chain-qualified address.
func (r *Reader) Erc20(chain model.ChainID, token string) (model.Erc20, error) {
	slice, err := r.chain(chain)
	if err != nil {
		return model.Erc20{}, err
	}
	meta, ok := slice.erc20s[model.TokenID(chain, token)]
	if !ok {
		return model.Erc20{}, notFound(fmt.Sprintf("chain/%s/erc20/%s", chain, token))
	}
	return meta, nil
}

// Balance returns the tracked balance for (token, account).
func (r *Reader) Balance(chain model.ChainID, token, account string) (*big.Int, error) {
	slice, err := r.chain(chain)
	if err != nil {
		return nil, err
	}
	amount, ok := slice.balances[balanceKey(token, account)]
	if !ok {
		return nil, notFound(fmt.Sprintf("chain/%s/balance/%s/%s", chain, token, account))
	}
	return copyAmount(amount), nil
}

// Allowance returns the tracked allowance for (token, owner, spender).
func (r *Reader) Allowance(chain model.ChainID, token, owner, spender string) (*big.Int, error) {
	slice, err := r.chain(chain)
	if err != nil {
		return nil, err
	}
	amount, ok := slice.allowances[allowanceKey(token, owner, spender)]
	if !ok {
		return nil, notFound(fmt.Sprintf("chain/%s/allowance/%s/%s/%s", chain, token, owner, spender))
	}
	return copyAmount(amount), nil
}

// CurrentTime returns the chain's latest fetched block timestamp.
func (r *Reader) CurrentTime(chain model.ChainID) (time.Time, error) {
	slice, err := r.chain(chain)
	if err != nil {
		return time.Time{}, err
	}
	if !slice.hasCurrentTime {
		return time.Time{}, notFound(fmt.Sprintf("chain/%s/currentTime", chain))
	}
	return slice.currentTime, nil
}

// LatestBlock returns the chain's last fetched head block number.
func (r *Reader) LatestBlock(chain model.ChainID) (int64, error) {
	slice, err := r.chain(chain)
	if err != nil {
		return 0, err
	}
	if !slice.hasLatestBlock {
		return 0, notFound(fmt.Sprintf("chain/%s/latestBlock", chain))
	}
	return slice.latestBlock, nil
}

// EventCheckpoint returns the last block fully scanned for events.
func (r *Reader) EventCheckpoint(chain model.ChainID) (int64, error) {
	slice, err := r.chain(chain)
	if err != nil {
		return 0, err
	}
	if !slice.hasCheckpoint {
		return 0, notFound(fmt.Sprintf("chain/%s/eventCheckpoint", chain))
	}
	return slice.checkpoint, nil
}

// ActiveChain returns the externally selected current chain.
func (r *Reader) ActiveChain() (model.ChainID, error) {
	if r.snap.selection.chain == 0 {
		return 0, notFound("selection/chain")
	}
	return r.snap.selection.chain, nil
}

// ActiveAccount returns the externally selected current account.
func (r *Reader) ActiveAccount() (string, error) {
	if r.snap.selection.account == "" {
		return "", notFound("selection/account")
	}
	return r.snap.selection.account, nil
}

// ActiveRequest returns the externally selected current request key.
func (r *Reader) ActiveRequest() (model.RequestKey, error) {
	if r.snap.selection.request == nil {
		return model.RequestKey{}, notFound("selection/request")
	}
	return *r.snap.selection.request, nil
}

// ListRequests returns every mirrored request across all chains, newest
// first, ties broken by chain-qualified key for a stable order.
func (r *Reader) ListRequests() []model.Request {
	var out []model.Request
	for _, slice := range r.snap.chains {
		for _, req := range slice.requests {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Timestamp != out[j].Key.Timestamp {
			return out[i].Key.Timestamp > out[j].Key.Timestamp
		}
		return out[i].Key.ID() < out[j].Key.ID()
	})
	return out
}
