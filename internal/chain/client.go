// Package chain defines the narrow contract the sync core uses to reach a
// chain-access service. Implementations live in subpackages (evm); the core
// never constructs raw network calls itself.
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/Darruma/protocol/internal/domain/event"
	"github.com/Darruma/protocol/internal/domain/model"
)

// Client exposes typed reads of the oracle and token contracts, bounded
// event queries, and transaction submission for one chain.
type Client interface {
	// ChainID returns the chain this client talks to.
	ChainID() model.ChainID

	// OracleAddress returns the optimistic oracle contract address, the
	// spender for collateral approvals.
	OracleAddress() string

	// BlockNumber returns the latest block number on chain.
	BlockNumber(ctx context.Context) (int64, error)

	// BlockTime returns the latest block's timestamp.
	BlockTime(ctx context.Context) (time.Time, error)

	// GetRequest reads the full oracle request record. ancillaryData is the
	// raw bytes; the returned Request carries the chain-qualified key with
	// the ancillary data hash filled in.
	GetRequest(ctx context.Context, requester, identifier string, timestamp int64, ancillaryData []byte) (model.Request, error)

	// TokenInfo reads ERC-20 metadata (symbol, name, decimals).
	TokenInfo(ctx context.Context, token string) (model.Erc20, error)

	// BalanceOf reads one account's token balance.
	BalanceOf(ctx context.Context, token, account string) (*big.Int, error)

	// Allowance reads one (owner, spender) allowance.
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)

	// QueryEvents returns decoded oracle events for the inclusive block
	// range, oldest first. Range sizing/chunking is the caller's concern.
	QueryEvents(ctx context.Context, fromBlock, toBlock int64) ([]event.OracleEvent, error)

	// Approve submits an ERC-20 approval and returns the tx hash.
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)

	// ProposePrice submits a price proposal for the request.
	ProposePrice(ctx context.Context, req model.Request, price *big.Int) (string, error)

	// DisputePrice submits a dispute of the request's current proposal.
	DisputePrice(ctx context.Context, req model.Request) (string, error)

	// TxStatus reports whether a submitted transaction is still pending,
	// confirmed, or failed.
	TxStatus(ctx context.Context, txHash string) (model.TxStatus, error)
}
