// Package events folds decoded oracle logs into request records.
//
// The fold is pure and set-based: applying an overlapping sub-range a
// second time produces the same records, which lets the event poller retry
// a failed range without moving its checkpoint.
package events

import (
	"github.com/Darruma/protocol/internal/domain/event"
	"github.com/Darruma/protocol/internal/domain/model"
)

// Reduce applies an ordered sequence of events over a base record set and
// returns the records that changed, keyed by RequestKey.ID(). The base map
// is not mutated.
func Reduce(base map[string]model.Request, evts []event.OracleEvent) map[string]model.Request {
	out := make(map[string]model.Request, len(evts))

	for _, ev := range evts {
		if !ev.Key.Valid() {
			continue
		}
		id := ev.Key.ID()

		req, ok := out[id]
		if !ok {
			req, ok = base[id]
			if !ok {
				req = model.Request{Key: ev.Key}
			}
		}
		out[id] = apply(req, ev)
	}
	return out
}

func apply(req model.Request, ev event.OracleEvent) model.Request {
	if req.AncillaryData == "" && ev.AncillaryData != "" {
		req.AncillaryData = ev.AncillaryData
	}

	switch ev.Kind {
	case event.KindRequestPrice:
		if ev.Currency != "" {
			req.Currency = ev.Currency
		}
		req.State = maxState(req.State, model.StateRequested)
	case event.KindProposePrice:
		if ev.Proposer != "" {
			req.Proposer = ev.Proposer
		}
		if ev.ProposedPrice != nil {
			req.ProposedPrice = ev.ProposedPrice
		}
		if ev.Expiration > 0 {
			req.Expiration = ev.Expiration
		}
		req.State = maxState(req.State, model.StateProposed)
	case event.KindDisputePrice:
		if ev.Disputer != "" {
			req.Disputer = ev.Disputer
		}
		req.State = maxState(req.State, model.StateDisputed)
	case event.KindSettle:
		if ev.ResolvedPrice != nil {
			req.ResolvedPrice = ev.ResolvedPrice
		}
		req.State = model.StateSettled
	}

	if ev.Block > req.UpdatedBlock {
		req.UpdatedBlock = ev.Block
	}
	return req
}

// maxState keeps the record's lifecycle monotonic so re-applied overlap
// ranges cannot walk a request backwards.
func maxState(a, b model.RequestState) model.RequestState {
	if a > b {
		return a
	}
	return b
}
