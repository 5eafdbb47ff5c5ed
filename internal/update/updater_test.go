package update

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Darruma/protocol/internal/chain"
	"github.com/Darruma/protocol/internal/chain/mocks"
	"github.com/Darruma/protocol/internal/domain/event"
	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/store"
)

const (
	testRequester = "0x00000000000000000000000000000000000000aa"
	testProposer  = "0x00000000000000000000000000000000000000bb"
	testToken     = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	testAccount   = "0x00000000000000000000000000000000000000ee"
	testOracle    = "0xee3afe347d5c74317041e2618c49534daf887c24"
)

func testKey() model.RequestKey {
	return model.RequestKey{
		Chain:             model.ChainEthereum,
		Requester:         testRequester,
		Identifier:        "YES_OR_NO_QUERY",
		Timestamp:         1700000000,
		AncillaryDataHash: "0xhash",
	}
}

func newTestUpdater(t *testing.T) (*Updater, *mocks.MockClient, *store.Store) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	st := store.New()
	u, err := New(st, map[model.ChainID]chain.Client{model.ChainEthereum: client}, nil)
	require.NoError(t, err)
	return u, client, st
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, map[model.ChainID]chain.Client{}, nil)
	require.Error(t, err)

	_, err = New(store.New(), nil, nil)
	require.Error(t, err)
}

func TestFetchRequestCommitsRecord(t *testing.T) {
	u, client, st := newTestUpdater(t)

	fetched := model.Request{
		Key:           testKey(),
		State:         model.StateProposed,
		AncillaryData: "0x616263",
		Proposer:      testProposer,
		ProposedPrice: big.NewInt(42),
	}
	client.EXPECT().
		GetRequest(gomock.Any(), testRequester, "YES_OR_NO_QUERY", int64(1700000000), []byte("abc")).
		Return(fetched, nil)

	got, err := u.FetchRequest(context.Background(), model.ChainEthereum, testRequester, "YES_OR_NO_QUERY", 1700000000, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, fetched, got)

	stored, err := st.Read().Request(testKey())
	require.NoError(t, err)
	assert.Equal(t, model.StateProposed, stored.State)
}

func TestFetchRequestErrorLeavesStoreUntouched(t *testing.T) {
	u, client, st := newTestUpdater(t)

	client.EXPECT().
		GetRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.Request{}, errors.New("node down"))

	_, err := u.FetchRequest(context.Background(), model.ChainEthereum, testRequester, "YES_OR_NO_QUERY", 1700000000, nil)
	require.Error(t, err)

	_, err = st.Read().Request(testKey())
	assert.True(t, store.IsNotFound(err))
}

func TestRefreshRequestUsesStoredAncillary(t *testing.T) {
	u, client, st := newTestUpdater(t)

	seed := model.Request{Key: testKey(), State: model.StateRequested, AncillaryData: "0x616263"}
	require.NoError(t, st.Write(func(tx *store.Txn) error {
		return tx.Chain(model.ChainEthereum).SetRequest(seed)
	}))

	refreshed := seed
	refreshed.State = model.StateExpired
	client.EXPECT().
		GetRequest(gomock.Any(), testRequester, "YES_OR_NO_QUERY", int64(1700000000), []byte("abc")).
		Return(refreshed, nil)

	got, err := u.RefreshRequest(context.Background(), testKey())
	require.NoError(t, err)
	assert.Equal(t, model.StateExpired, got.State)
}

func TestRefreshRequestUnknownKey(t *testing.T) {
	u, _, _ := newTestUpdater(t)
	_, err := u.RefreshRequest(context.Background(), testKey())
	assert.True(t, store.IsNotFound(err))
}

func TestRefreshBalanceFetchesTokenMetadataOnce(t *testing.T) {
	u, client, st := newTestUpdater(t)

	meta := model.Erc20{Chain: model.ChainEthereum, Address: testToken, Symbol: "WETH", Decimals: 18}
	client.EXPECT().TokenInfo(gomock.Any(), testToken).Return(meta, nil).Times(1)
	client.EXPECT().BalanceOf(gomock.Any(), testToken, testAccount).Return(big.NewInt(1000), nil).Times(2)

	require.NoError(t, u.RefreshBalance(context.Background(), model.ChainEthereum, testToken, testAccount))
	// Second refresh hits the metadata cache.
	require.NoError(t, u.RefreshBalance(context.Background(), model.ChainEthereum, testToken, testAccount))

	bal, err := st.Read().Balance(model.ChainEthereum, testToken, testAccount)
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.String())

	stored, err := st.Read().Erc20(model.ChainEthereum, testToken)
	require.NoError(t, err)
	assert.Equal(t, "WETH", stored.Symbol)
}

func TestRefreshAllowance(t *testing.T) {
	u, client, st := newTestUpdater(t)

	client.EXPECT().
		Allowance(gomock.Any(), testToken, testAccount, testOracle).
		Return(big.NewInt(250), nil)

	require.NoError(t, u.RefreshAllowance(context.Background(), model.ChainEthereum, testToken, testAccount, testOracle))

	amount, err := st.Read().Allowance(model.ChainEthereum, testToken, testAccount, testOracle)
	require.NoError(t, err)
	assert.Equal(t, "250", amount.String())
}

func TestRefreshCurrentTimeAndLatestBlock(t *testing.T) {
	u, client, st := newTestUpdater(t)

	now := time.Unix(1700000123, 0).UTC()
	client.EXPECT().BlockTime(gomock.Any()).Return(now, nil)
	client.EXPECT().BlockNumber(gomock.Any()).Return(int64(18_000_000), nil)

	require.NoError(t, u.RefreshCurrentTime(context.Background(), model.ChainEthereum))
	head, err := u.RefreshLatestBlock(context.Background(), model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(18_000_000), head)

	got, err := st.Read().CurrentTime(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	block, err := st.Read().LatestBlock(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(18_000_000), block)
}

func TestFetchEventsFoldsAndAdvancesCheckpoint(t *testing.T) {
	u, client, st := newTestUpdater(t)

	key := testKey()
	evts := []event.OracleEvent{
		{Chain: model.ChainEthereum, Block: 101, Kind: event.KindRequestPrice, Key: key, Currency: testToken, AncillaryData: "0x616263"},
		{Chain: model.ChainEthereum, Block: 105, Kind: event.KindProposePrice, Key: key, Proposer: testProposer, ProposedPrice: big.NewInt(1), Expiration: 1700003600},
	}
	client.EXPECT().QueryEvents(gomock.Any(), int64(100), int64(110)).Return(evts, nil)

	applied, err := u.FetchEvents(context.Background(), model.ChainEthereum, 100, 110)
	require.NoError(t, err)
	assert.Len(t, applied, 2)

	req, err := st.Read().Request(key)
	require.NoError(t, err)
	assert.Equal(t, model.StateProposed, req.State)
	assert.Equal(t, testProposer, req.Proposer)
	assert.Equal(t, "0x616263", req.AncillaryData)
	assert.Equal(t, int64(105), req.UpdatedBlock)

	cp, err := st.Read().EventCheckpoint(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(110), cp)
}

func TestFetchEventsEmptyRangeStillAdvancesCheckpoint(t *testing.T) {
	u, client, st := newTestUpdater(t)

	client.EXPECT().QueryEvents(gomock.Any(), int64(100), int64(110)).Return(nil, nil)

	applied, err := u.FetchEvents(context.Background(), model.ChainEthereum, 100, 110)
	require.NoError(t, err)
	assert.Empty(t, applied)

	cp, err := st.Read().EventCheckpoint(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(110), cp)
}

func TestFetchEventsErrorKeepsCheckpoint(t *testing.T) {
	u, client, st := newTestUpdater(t)

	client.EXPECT().QueryEvents(gomock.Any(), int64(100), int64(110)).Return(nil, nil)
	require.NoError(t, st.Write(func(tx *store.Txn) error { return nil }))
	_, err := u.FetchEvents(context.Background(), model.ChainEthereum, 100, 110)
	require.NoError(t, err)

	client.EXPECT().QueryEvents(gomock.Any(), int64(111), int64(120)).Return(nil, errors.New("node down"))
	_, err = u.FetchEvents(context.Background(), model.ChainEthereum, 111, 120)
	require.Error(t, err)

	cp, err := st.Read().EventCheckpoint(model.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(110), cp, "failed range does not move the checkpoint")
}

func TestFetchEventsInvertedRange(t *testing.T) {
	u, _, _ := newTestUpdater(t)
	_, err := u.FetchEvents(context.Background(), model.ChainEthereum, 110, 100)
	require.Error(t, err)
}

func TestUnknownChainRejected(t *testing.T) {
	u, _, _ := newTestUpdater(t)

	_, err := u.Client(model.ChainPolygon)
	require.Error(t, err)

	err = u.RefreshCurrentTime(context.Background(), model.ChainPolygon)
	require.Error(t, err)
}
