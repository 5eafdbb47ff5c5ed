// Package store holds the in-memory snapshot of synchronized chain state.
//
// Readers obtain an immutable snapshot and perform pure lookups against it.
// Writers batch mutations in a transaction: the whole batch becomes visible
// atomically, or not at all. The snapshot is rebuilt from chain reads on
// process start; nothing here is durable.
package store

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/metrics"
)

// Store is the single shared mutable resource of the syncer. All mutation
// goes through Write; Read returns a lock-free immutable snapshot.
type Store struct {
	writeMu sync.Mutex
	snap    atomic.Pointer[snapshot]
}

// snapshot is the complete immutable state at one point in time. A committed
// snapshot (and everything reachable from it) is never mutated again.
type snapshot struct {
	chains    map[model.ChainID]*chainSlice
	selection selection
}

// selection carries the externally chosen "current" chain/account/request.
// The core only reacts to it; the UI/API layer sets it.
type selection struct {
	chain   model.ChainID
	account string
	request *model.RequestKey
}

type chainSlice struct {
	requests   map[string]model.Request
	erc20s     map[string]model.Erc20
	balances   map[string]*big.Int
	allowances map[string]*big.Int

	currentTime    time.Time
	hasCurrentTime bool

	latestBlock    int64
	hasLatestBlock bool

	// Last block fully scanned for events. Forward-only.
	checkpoint    int64
	hasCheckpoint bool
}

func New() *Store {
	s := &Store{}
	s.snap.Store(&snapshot{chains: map[model.ChainID]*chainSlice{}})
	return s
}

// Read returns a pure-lookup view over the current snapshot. The view stays
// consistent for its whole lifetime even while writes continue.
func (s *Store) Read() *Reader {
	return &Reader{snap: s.snap.Load()}
}

// Write runs fn against a transaction over a copy-on-write draft of the
// current snapshot. If fn returns nil the draft is committed atomically;
// otherwise it is discarded. The transaction must not be retained outside
// fn: it is sealed when Write returns.
func (s *Store) Write(fn func(tx *Txn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := newTxn(s.snap.Load())
	err := fn(tx)
	tx.sealed = true
	if err != nil {
		metrics.StoreWriteAborts.Inc()
		return err
	}

	s.snap.Store(tx.draft)
	metrics.StoreWrites.Inc()
	return nil
}

func newChainSlice() *chainSlice {
	return &chainSlice{
		requests:   map[string]model.Request{},
		erc20s:     map[string]model.Erc20{},
		balances:   map[string]*big.Int{},
		allowances: map[string]*big.Int{},
	}
}

func (c *chainSlice) clone() *chainSlice {
	out := &chainSlice{
		requests:       make(map[string]model.Request, len(c.requests)),
		erc20s:         make(map[string]model.Erc20, len(c.erc20s)),
		balances:       make(map[string]*big.Int, len(c.balances)),
		allowances:     make(map[string]*big.Int, len(c.allowances)),
		currentTime:    c.currentTime,
		hasCurrentTime: c.hasCurrentTime,
		latestBlock:    c.latestBlock,
		hasLatestBlock: c.hasLatestBlock,
		checkpoint:     c.checkpoint,
		hasCheckpoint:  c.hasCheckpoint,
	}
	for k, v := range c.requests {
		out.requests[k] = v
	}
	for k, v := range c.erc20s {
		out.erc20s[k] = v
	}
	for k, v := range c.balances {
		out.balances[k] = v
	}
	for k, v := range c.allowances {
		out.allowances[k] = v
	}
	return out
}
