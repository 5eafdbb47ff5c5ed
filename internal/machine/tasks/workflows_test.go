package tasks

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/store"
)

// runToCompletion ticks until the workflow leaves the registry.
func runToCompletion(t *testing.T, clk *manualClock, exec *machine.Executor, id string) machine.Status {
	t.Helper()
	for i := 0; i < 100; i++ {
		st, ok := exec.Status(id)
		require.True(t, ok, "workflow %s vanished without a status", id)
		if st.Done {
			return st
		}
		exec.Tick(context.Background())
		clk.Advance(time.Minute)
	}
	t.Fatalf("workflow %s did not finish within 100 ticks", id)
	return machine.Status{}
}

func TestSetUserAppliesAccount(t *testing.T) {
	r := newRig(t, model.ChainEthereum)

	spec, err := NewSetUser(r.updater, "0x00000000000000000000000000000000000000EE")
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)

	account, err := r.store.Read().ActiveAccount()
	require.NoError(t, err)
	assert.Equal(t, testAccount, account, "account stored lowercased")
}

func TestSetUserRefreshesBalancesForActiveRequest(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	seedActiveRequest(t, r.store, model.StateProposed)

	client := r.clients[model.ChainEthereum]
	client.EXPECT().TokenInfo(gomock.Any(), testCurrency).
		Return(model.Erc20{Chain: model.ChainEthereum, Address: testCurrency, Symbol: "WETH", Decimals: 18}, nil)
	client.EXPECT().BalanceOf(gomock.Any(), testCurrency, testAccount).Return(big.NewInt(1000), nil)
	client.EXPECT().OracleAddress().Return(testOracle)
	client.EXPECT().Allowance(gomock.Any(), testCurrency, testAccount, testOracle).Return(big.NewInt(250), nil)

	spec, err := NewSetUser(r.updater, testAccount)
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)

	bal, err := r.store.Read().Balance(model.ChainEthereum, testCurrency, testAccount)
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.String())

	allowance, err := r.store.Read().Allowance(model.ChainEthereum, testCurrency, testAccount, testOracle)
	require.NoError(t, err)
	assert.Equal(t, "250", allowance.String())
}

func TestSetUserValidation(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	_, err := NewSetUser(r.updater, "")
	assert.True(t, IsFatalConfig(err))
}

func TestSetActiveRequestFetchesThenSelects(t *testing.T) {
	r := newRig(t, model.ChainEthereum)

	fetched := model.Request{Key: testKey(), State: model.StateRequested, Currency: testCurrency, AncillaryData: "0x616263"}
	r.clients[model.ChainEthereum].EXPECT().
		GetRequest(gomock.Any(), testRequester, "YES_OR_NO_QUERY", int64(1700000000), []byte("abc")).
		Return(fetched, nil)

	spec, err := NewSetActiveRequest(r.updater, SetActiveRequestConfig{
		Chain:         model.ChainEthereum,
		Requester:     testRequester,
		Identifier:    "YES_OR_NO_QUERY",
		Timestamp:     1700000000,
		AncillaryData: []byte("abc"),
	})
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)

	key, err := r.store.Read().ActiveRequest()
	require.NoError(t, err)
	assert.Equal(t, testKey().ID(), key.ID())
}

func TestSetActiveRequestRetriesTransientThenFails(t *testing.T) {
	r := newRig(t, model.ChainEthereum)

	r.clients[model.ChainEthereum].EXPECT().
		GetRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.Request{}, errors.New("http status 503: unavailable")).
		Times(defaultMaxAttempts)

	spec, err := NewSetActiveRequest(r.updater, SetActiveRequestConfig{
		Chain:      model.ChainEthereum,
		Requester:  testRequester,
		Identifier: "YES_OR_NO_QUERY",
		Timestamp:  1700000000,
	})
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)

	require.Error(t, st.Err)
	_, err = r.store.Read().ActiveRequest()
	assert.True(t, store.IsNotFound(err), "selection untouched on failure")
}

func TestSetActiveRequestValidation(t *testing.T) {
	r := newRig(t, model.ChainEthereum)

	_, err := NewSetActiveRequest(r.updater, SetActiveRequestConfig{Chain: model.ChainEthereum})
	assert.True(t, IsFatalConfig(err))

	_, err = NewSetActiveRequest(r.updater, SetActiveRequestConfig{
		Chain: model.ChainPolygon, Requester: testRequester, Identifier: "X", Timestamp: 1,
	})
	assert.True(t, IsFatalConfig(err))
}

func TestSwitchChainVerifiesThenApplies(t *testing.T) {
	r := newRig(t, model.ChainEthereum, model.ChainPolygon)

	r.clients[model.ChainPolygon].EXPECT().BlockNumber(gomock.Any()).Return(int64(42), nil)

	spec, err := NewSwitchChain(r.updater, model.ChainPolygon)
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)

	active, err := r.store.Read().ActiveChain()
	require.NoError(t, err)
	assert.Equal(t, model.ChainPolygon, active)
}

func TestSwitchChainUnreachableFailsWithoutApplying(t *testing.T) {
	r := newRig(t, model.ChainEthereum, model.ChainPolygon)

	r.clients[model.ChainPolygon].EXPECT().
		BlockNumber(gomock.Any()).
		Return(int64(0), errors.New("dial tcp: connection refused")).
		Times(defaultMaxAttempts)

	spec, err := NewSwitchChain(r.updater, model.ChainPolygon)
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)

	require.Error(t, st.Err)
	_, err = r.store.Read().ActiveChain()
	assert.True(t, store.IsNotFound(err))
}

func TestApproveSubmitConfirmRefresh(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	require.NoError(t, r.store.Write(func(tx *store.Txn) error {
		tx.SetActiveAccount(testAccount)
		return nil
	}))

	client := r.clients[model.ChainEthereum]
	client.EXPECT().OracleAddress().Return(testOracle)
	client.EXPECT().Approve(gomock.Any(), testCurrency, testOracle, big.NewInt(500)).Return("0xtx1", nil)
	gomock.InOrder(
		client.EXPECT().TxStatus(gomock.Any(), "0xtx1").Return(model.TxStatusPending, nil),
		client.EXPECT().TxStatus(gomock.Any(), "0xtx1").Return(model.TxStatusConfirmed, nil),
	)
	client.EXPECT().Allowance(gomock.Any(), testCurrency, testAccount, testOracle).Return(big.NewInt(500), nil)

	spec, err := NewApprove(r.updater, ApproveConfig{
		Chain:  model.ChainEthereum,
		Token:  testCurrency,
		Amount: big.NewInt(500),
	})
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)

	allowance, err := r.store.Read().Allowance(model.ChainEthereum, testCurrency, testAccount, testOracle)
	require.NoError(t, err)
	assert.Equal(t, "500", allowance.String())
}

func TestApproveRevertedTxFailsDistinctly(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	require.NoError(t, r.store.Write(func(tx *store.Txn) error {
		tx.SetActiveAccount(testAccount)
		return nil
	}))

	client := r.clients[model.ChainEthereum]
	client.EXPECT().OracleAddress().Return(testOracle)
	client.EXPECT().Approve(gomock.Any(), testCurrency, testOracle, gomock.Any()).Return("0xtx1", nil)
	client.EXPECT().TxStatus(gomock.Any(), "0xtx1").Return(model.TxStatusFailed, nil)

	spec, err := NewApprove(r.updater, ApproveConfig{
		Chain:  model.ChainEthereum,
		Token:  testCurrency,
		Amount: big.NewInt(500),
	})
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)

	require.Error(t, st.Err)
	assert.Contains(t, st.Err.Error(), "reverted")
}

func TestApproveWithoutActiveAccountIsFatal(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	r.clients[model.ChainEthereum].EXPECT().OracleAddress().Return(testOracle)

	spec, err := NewApprove(r.updater, ApproveConfig{
		Chain:  model.ChainEthereum,
		Token:  testCurrency,
		Amount: big.NewInt(1),
	})
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)

	assert.True(t, IsFatalConfig(st.Err))
}

func TestProposeLifecycle(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	seedActiveRequest(t, r.store, model.StateRequested)

	client := r.clients[model.ChainEthereum]
	client.EXPECT().
		ProposePrice(gomock.Any(), gomock.Any(), big.NewInt(1)).
		Return("0xtx2", nil)
	client.EXPECT().TxStatus(gomock.Any(), "0xtx2").Return(model.TxStatusConfirmed, nil)
	client.EXPECT().
		GetRequest(gomock.Any(), testRequester, "YES_OR_NO_QUERY", int64(1700000000), []byte("abc")).
		Return(model.Request{Key: testKey(), State: model.StateProposed, Currency: testCurrency, AncillaryData: "0x616263", ProposedPrice: big.NewInt(1)}, nil)

	spec, err := NewPropose(r.updater, testKey(), big.NewInt(1))
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)

	req, err := r.store.Read().Request(testKey())
	require.NoError(t, err)
	assert.Equal(t, model.StateProposed, req.State)
}

func TestProposeWrongStateFails(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	seedActiveRequest(t, r.store, model.StateProposed)

	spec, err := NewPropose(r.updater, testKey(), big.NewInt(1))
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)

	require.Error(t, st.Err)
	assert.Contains(t, st.Err.Error(), "not Requested")
}

func TestDisputeLifecycle(t *testing.T) {
	r := newRig(t, model.ChainEthereum)
	seedActiveRequest(t, r.store, model.StateProposed)

	client := r.clients[model.ChainEthereum]
	client.EXPECT().DisputePrice(gomock.Any(), gomock.Any()).Return("0xtx3", nil)
	client.EXPECT().TxStatus(gomock.Any(), "0xtx3").Return(model.TxStatusConfirmed, nil)
	client.EXPECT().
		GetRequest(gomock.Any(), testRequester, "YES_OR_NO_QUERY", int64(1700000000), []byte("abc")).
		Return(model.Request{Key: testKey(), State: model.StateDisputed, Currency: testCurrency, AncillaryData: "0x616263"}, nil)

	spec, err := NewDispute(r.updater, testKey())
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)

	req, err := r.store.Read().Request(testKey())
	require.NoError(t, err)
	assert.Equal(t, model.StateDisputed, req.State)
}

func TestFetchPastEventsWalksChunks(t *testing.T) {
	r := newRig(t, model.ChainEthereum)

	client := r.clients[model.ChainEthereum]
	gomock.InOrder(
		client.EXPECT().QueryEvents(gomock.Any(), int64(0), int64(3)).Return(nil, nil),
		client.EXPECT().QueryEvents(gomock.Any(), int64(4), int64(7)).Return(nil, nil),
		client.EXPECT().QueryEvents(gomock.Any(), int64(8), int64(9)).Return(nil, nil),
	)

	spec, w, err := NewFetchPastEvents(r.updater, FetchPastEventsConfig{
		Chain:     model.ChainEthereum,
		From:      0,
		To:        9,
		ChunkSize: 4,
	})
	require.NoError(t, err)

	clk := newManualClock()
	exec := machine.NewExecutor(clk, nil)
	require.NoError(t, exec.Register(spec))
	st := runToCompletion(t, clk, exec, spec.ID)
	require.NoError(t, st.Err)
	assert.Equal(t, int64(10), w.Cursor())

	// Backfill never touches the forward watermark.
	_, err = r.store.Read().EventCheckpoint(model.ChainEthereum)
	assert.True(t, store.IsNotFound(err))
}

func TestFetchPastEventsValidation(t *testing.T) {
	r := newRig(t, model.ChainEthereum)

	_, _, err := NewFetchPastEvents(r.updater, FetchPastEventsConfig{Chain: model.ChainEthereum, From: 10, To: 5})
	assert.True(t, IsFatalConfig(err))
}
