package store

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darruma/protocol/internal/domain/model"
)

func testKey(chain model.ChainID, ts int64) model.RequestKey {
	return model.RequestKey{
		Chain:             chain,
		Requester:         "0xRequesterAAAA",
		Identifier:        "0x5945535f4f525f4e4f",
		Timestamp:         ts,
		AncillaryDataHash: "0xabc123",
	}
}

func TestRead_NotFoundBeforeFetch(t *testing.T) {
	s := New()
	r := s.Read()

	_, err := r.Request(testKey(model.ChainPolygon, 1000))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = r.Balance(model.ChainPolygon, "0xToken", "0xAccount")
	assert.True(t, IsNotFound(err))

	_, err = r.ActiveAccount()
	assert.True(t, IsNotFound(err))

	_, err = r.EventCheckpoint(model.ChainPolygon)
	assert.True(t, IsNotFound(err))
}

func TestWrite_BatchVisibleAtomically(t *testing.T) {
	s := New()
	key := testKey(model.ChainEthereum, 1700000000)

	// A reader taken before the write must keep seeing the prior state for
	// its whole lifetime.
	before := s.Read()

	err := s.Write(func(tx *Txn) error {
		ct := tx.Chain(model.ChainEthereum)
		if err := ct.SetRequest(model.Request{Key: key, State: model.StateRequested, Currency: "0xUSDC"}); err != nil {
			return err
		}
		ct.SetBalance("0xUSDC", "0xAccount", big.NewInt(500))
		ct.SetCurrentTime(time.Unix(1700000100, 0))
		return nil
	})
	require.NoError(t, err)

	_, err = before.Request(key)
	assert.True(t, IsNotFound(err), "pre-write reader must not see the new request")

	after := s.Read()
	req, err := after.Request(key)
	require.NoError(t, err)
	assert.Equal(t, model.StateRequested, req.State)

	bal, err := after.Balance(model.ChainEthereum, "0xUSDC", "0xAccount")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Int64())

	ts, err := after.CurrentTime(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000100), ts.Unix())
}

func TestWrite_ErrorDiscardsWholeBatch(t *testing.T) {
	s := New()
	key := testKey(model.ChainEthereum, 42)

	boom := errors.New("boom")
	err := s.Write(func(tx *Txn) error {
		ct := tx.Chain(model.ChainEthereum)
		require.NoError(t, ct.SetRequest(model.Request{Key: key, State: model.StateProposed}))
		ct.SetBalance("0xUSDC", "0xAccount", big.NewInt(7))
		return boom
	})
	require.ErrorIs(t, err, boom)

	r := s.Read()
	_, err = r.Request(key)
	assert.True(t, IsNotFound(err), "aborted write must leave no trace")
	_, err = r.Balance(model.ChainEthereum, "0xUSDC", "0xAccount")
	assert.True(t, IsNotFound(err))
}

func TestWrite_FieldUpdateKeepsSiblings(t *testing.T) {
	s := New()

	require.NoError(t, s.Write(func(tx *Txn) error {
		ct := tx.Chain(model.ChainPolygon)
		ct.SetBalance("0xUSDC", "0xAlice", big.NewInt(100))
		ct.SetAllowance("0xUSDC", "0xAlice", "0xOracle", big.NewInt(50))
		return nil
	}))

	// Updating one entry must not disturb the other.
	require.NoError(t, s.Write(func(tx *Txn) error {
		tx.Chain(model.ChainPolygon).SetBalance("0xUSDC", "0xAlice", big.NewInt(90))
		return nil
	}))

	r := s.Read()
	bal, err := r.Balance(model.ChainPolygon, "0xUSDC", "0xAlice")
	require.NoError(t, err)
	assert.Equal(t, int64(90), bal.Int64())

	allow, err := r.Allowance(model.ChainPolygon, "0xUSDC", "0xAlice", "0xOracle")
	require.NoError(t, err)
	assert.Equal(t, int64(50), allow.Int64())
}

func TestCheckpoint_ForwardOnly(t *testing.T) {
	s := New()

	require.NoError(t, s.Write(func(tx *Txn) error {
		return tx.Chain(model.ChainEthereum).SetEventCheckpoint(100)
	}))

	err := s.Write(func(tx *Txn) error {
		return tx.Chain(model.ChainEthereum).SetEventCheckpoint(99)
	})
	require.Error(t, err)

	cp, err := s.Read().EventCheckpoint(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cp, "backward move must not commit")

	require.NoError(t, s.Write(func(tx *Txn) error {
		return tx.Chain(model.ChainEthereum).SetEventCheckpoint(100)
	}), "re-setting the same checkpoint is allowed")
}

func TestTxn_KeyValidation(t *testing.T) {
	s := New()

	err := s.Write(func(tx *Txn) error {
		return tx.Chain(model.ChainEthereum).SetRequest(model.Request{})
	})
	require.Error(t, err)

	err = s.Write(func(tx *Txn) error {
		// Key chain-qualified for Polygon, written into the Ethereum slice.
		return tx.Chain(model.ChainEthereum).SetRequest(model.Request{Key: testKey(model.ChainPolygon, 5)})
	})
	require.Error(t, err)

	err = s.Write(func(tx *Txn) error {
		return tx.SetActiveRequest(model.RequestKey{Requester: "0xabc"})
	})
	require.Error(t, err)
}

func TestTxn_SealedAfterWrite(t *testing.T) {
	s := New()

	var leaked *Txn
	require.NoError(t, s.Write(func(tx *Txn) error {
		leaked = tx
		return nil
	}))

	assert.Panics(t, func() {
		leaked.SetActiveAccount("0xAccount")
	})
}

func TestSelection_RoundTrip(t *testing.T) {
	s := New()
	key := testKey(model.ChainBoba, 77)

	require.NoError(t, s.Write(func(tx *Txn) error {
		tx.SetActiveChain(model.ChainBoba)
		tx.SetActiveAccount("0xAliCE")
		return tx.SetActiveRequest(key)
	}))

	r := s.Read()
	chain, err := r.ActiveChain()
	require.NoError(t, err)
	assert.Equal(t, model.ChainBoba, chain)

	account, err := r.ActiveAccount()
	require.NoError(t, err)
	assert.Equal(t, "0xalice", account, "account is canonicalized to lowercase")

	active, err := r.ActiveRequest()
	require.NoError(t, err)
	assert.Equal(t, key, active)

	require.NoError(t, s.Write(func(tx *Txn) error {
		tx.ClearActiveRequest()
		return nil
	}))
	_, err = s.Read().ActiveRequest()
	assert.True(t, IsNotFound(err))
}

func TestListRequests_SortedNewestFirst(t *testing.T) {
	s := New()

	keys := []model.RequestKey{
		testKey(model.ChainEthereum, 100),
		testKey(model.ChainPolygon, 300),
		testKey(model.ChainEthereum, 200),
	}
	require.NoError(t, s.Write(func(tx *Txn) error {
		for _, k := range keys {
			if err := tx.Chain(k.Chain).SetRequest(model.Request{Key: k, State: model.StateRequested}); err != nil {
				return err
			}
		}
		return nil
	}))

	listed := s.Read().ListRequests()
	require.Len(t, listed, 3)
	assert.Equal(t, int64(300), listed[0].Key.Timestamp)
	assert.Equal(t, int64(200), listed[1].Key.Timestamp)
	assert.Equal(t, int64(100), listed[2].Key.Timestamp)
}

func TestBalance_AmountIsCopied(t *testing.T) {
	s := New()
	amount := big.NewInt(10)

	require.NoError(t, s.Write(func(tx *Txn) error {
		tx.Chain(model.ChainEthereum).SetBalance("0xUSDC", "0xAlice", amount)
		return nil
	}))

	// Mutating the caller's value or the returned value must not leak into
	// the snapshot.
	amount.SetInt64(999)
	got, err := s.Read().Balance(model.ChainEthereum, "0xUSDC", "0xAlice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Int64())

	got.SetInt64(123)
	again, err := s.Read().Balance(model.ChainEthereum, "0xUSDC", "0xAlice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), again.Int64())
}

func TestTxn_RepeatedChainHandlesAliasOneDraft(t *testing.T) {
	// Two Chain(id) handles obtained inside one Write must mutate the same
	// draft slice: writes interleaved across both handles all commit.
	s := New()

	// Seed so the transaction starts from an existing slice and has to
	// clone it, not create a fresh one.
	require.NoError(t, s.Write(func(tx *Txn) error {
		tx.Chain(model.ChainEthereum).SetLatestBlock(1)
		return nil
	}))

	require.NoError(t, s.Write(func(tx *Txn) error {
		ct1 := tx.Chain(model.ChainEthereum)
		ct1.SetLatestBlock(5)

		ct2 := tx.Chain(model.ChainEthereum)
		assert.Same(t, ct1, ct2, "one ChainTxn per chain per transaction")
		ct2.SetCurrentTime(time.Unix(1700000100, 0))

		// Back through the first handle.
		return ct1.SetEventCheckpoint(9)
	}))

	r := s.Read()
	lb, err := r.LatestBlock(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(5), lb)

	ts, err := r.CurrentTime(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000100), ts.Unix())

	cp, err := r.EventCheckpoint(model.ChainEthereum)
	require.NoError(t, err, "checkpoint written through the first handle must commit")
	assert.Equal(t, int64(9), cp)
}

func TestWrite_ConcurrentWritersDoNotClobber(t *testing.T) {
	// Two writers target different request keys on the same chain. Both
	// records must survive, whichever order the writes land in.
	s := New()
	keyA := testKey(model.ChainEthereum, 1)
	keyB := testKey(model.ChainEthereum, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	for _, key := range []model.RequestKey{keyA, keyB} {
		key := key
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				err := s.Write(func(tx *Txn) error {
					return tx.Chain(key.Chain).SetRequest(model.Request{Key: key, State: model.StateProposed, UpdatedBlock: int64(i)})
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	r := s.Read()
	a, err := r.Request(keyA)
	require.NoError(t, err)
	b, err := r.Request(keyB)
	require.NoError(t, err)
	assert.Equal(t, int64(99), a.UpdatedBlock)
	assert.Equal(t, int64(99), b.UpdatedBlock)
}
