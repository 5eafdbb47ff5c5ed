// Package evm implements chain access against an EVM JSON-RPC node: typed
// reads of the optimistic oracle and ERC-20 contracts, lifecycle event
// queries, and transaction submission through the node's signer.
package evm

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/Darruma/protocol/internal/chain/rpc"
	"github.com/Darruma/protocol/internal/domain/event"
	"github.com/Darruma/protocol/internal/domain/model"
)

// Config wires one EVM chain client.
type Config struct {
	ChainID model.ChainID
	// Optimistic oracle contract address.
	OracleAddress string
	// Account used as msg.sender for submitted transactions. The node's
	// signer must hold its key.
	Account string
}

type Client struct {
	chainID model.ChainID
	oracle  string
	account string
	rpc     *rpc.Client
	logger  *slog.Logger
}

func NewClient(cfg Config, rpcClient *rpc.Client, logger *slog.Logger) (*Client, error) {
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("evm: chain id is required")
	}
	if cfg.OracleAddress == "" {
		return nil, fmt.Errorf("evm: oracle address is required")
	}
	if rpcClient == nil {
		return nil, fmt.Errorf("evm: rpc client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		chainID: cfg.ChainID,
		oracle:  strings.ToLower(cfg.OracleAddress),
		account: strings.ToLower(cfg.Account),
		rpc:     rpcClient,
		logger:  logger.With("component", "evm", "chain", cfg.ChainID.String()),
	}, nil
}

func (c *Client) ChainID() model.ChainID {
	return c.chainID
}

func (c *Client) OracleAddress() string {
	return c.oracle
}

func (c *Client) BlockNumber(ctx context.Context) (int64, error) {
	return c.rpc.BlockNumber(ctx)
}

func (c *Client) BlockTime(ctx context.Context) (time.Time, error) {
	block, err := c.rpc.BlockByTag(ctx, "latest")
	if err != nil {
		return time.Time{}, err
	}
	ts, err := rpc.ParseHexInt64(block.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("block timestamp: %w", err)
	}
	return time.Unix(ts, 0).UTC(), nil
}

// requestArgs builds the (requester, identifier, timestamp, ancillaryData)
// argument list shared by every oracle request call.
func requestArgs(requester, identifier string, timestamp int64, ancillaryData []byte) ([]arg, error) {
	reqArg, err := argAddress(requester)
	if err != nil {
		return nil, err
	}
	idArg, err := argIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return []arg{reqArg, idArg, argUint64(timestamp), argBytes(ancillaryData)}, nil
}

func (c *Client) GetRequest(ctx context.Context, requester, identifier string, timestamp int64, ancillaryData []byte) (model.Request, error) {
	args, err := requestArgs(requester, identifier, timestamp, ancillaryData)
	if err != nil {
		return model.Request{}, err
	}

	ret, err := c.rpc.CallContract(ctx, rpc.CallMsg{
		To:   c.oracle,
		Data: encodeCall(selGetRequest, args...),
	})
	if err != nil {
		return model.Request{}, fmt.Errorf("getRequest: %w", err)
	}

	r, err := newWordReader(ret)
	if err != nil {
		return model.Request{}, err
	}
	proposer, err := r.address()
	if err != nil {
		return model.Request{}, err
	}
	disputer, err := r.address()
	if err != nil {
		return model.Request{}, err
	}
	currency, err := r.address()
	if err != nil {
		return model.Request{}, err
	}
	if _, err := r.boolean(); err != nil { // settled
		return model.Request{}, err
	}
	if _, err := r.boolean(); err != nil { // refundOnDispute
		return model.Request{}, err
	}
	proposedPrice, err := r.bigInt()
	if err != nil {
		return model.Request{}, err
	}
	resolvedPrice, err := r.bigInt()
	if err != nil {
		return model.Request{}, err
	}
	expiration, err := r.int64()
	if err != nil {
		return model.Request{}, err
	}
	reward, err := r.bigUint()
	if err != nil {
		return model.Request{}, err
	}
	finalFee, err := r.bigUint()
	if err != nil {
		return model.Request{}, err
	}
	bond, err := r.bigUint()
	if err != nil {
		return model.Request{}, err
	}
	customLiveness, err := r.int64()
	if err != nil {
		return model.Request{}, err
	}

	state, err := c.getState(ctx, args)
	if err != nil {
		return model.Request{}, err
	}

	req := model.Request{
		Key: model.RequestKey{
			Chain:             c.chainID,
			Requester:         strings.ToLower(requester),
			Identifier:        identifier,
			Timestamp:         timestamp,
			AncillaryDataHash: keccakHex(ancillaryData),
		},
		Currency:       normalizeAddress(currency),
		State:          state,
		AncillaryData:  "0x" + hex.EncodeToString(ancillaryData),
		Proposer:       normalizeAddress(proposer),
		Disputer:       normalizeAddress(disputer),
		Expiration:     expiration,
		CustomLiveness: customLiveness,
		Reward:         reward,
		Bond:           bond,
		FinalFee:       finalFee,
	}
	if req.Proposer != "" {
		req.ProposedPrice = proposedPrice
	}
	if state >= model.StateResolved {
		req.ResolvedPrice = resolvedPrice
	}
	return req, nil
}

func (c *Client) getState(ctx context.Context, args []arg) (model.RequestState, error) {
	ret, err := c.rpc.CallContract(ctx, rpc.CallMsg{
		To:   c.oracle,
		Data: encodeCall(selGetState, args...),
	})
	if err != nil {
		return model.StateInvalid, fmt.Errorf("getState: %w", err)
	}
	r, err := newWordReader(ret)
	if err != nil {
		return model.StateInvalid, err
	}
	n, err := r.int64()
	if err != nil {
		return model.StateInvalid, err
	}
	if n < 0 || n > int64(model.StateSettled) {
		return model.StateInvalid, fmt.Errorf("unknown request state %d", n)
	}
	return model.RequestState(n), nil
}

func (c *Client) TokenInfo(ctx context.Context, token string) (model.Erc20, error) {
	decRet, err := c.rpc.CallContract(ctx, rpc.CallMsg{To: token, Data: selDecimals})
	if err != nil {
		return model.Erc20{}, fmt.Errorf("decimals: %w", err)
	}
	r, err := newWordReader(decRet)
	if err != nil {
		return model.Erc20{}, err
	}
	decimals, err := r.int64()
	if err != nil {
		return model.Erc20{}, err
	}

	symRet, err := c.rpc.CallContract(ctx, rpc.CallMsg{To: token, Data: selSymbol})
	if err != nil {
		return model.Erc20{}, fmt.Errorf("symbol: %w", err)
	}
	symbol, err := decodeStringResult(symRet)
	if err != nil {
		return model.Erc20{}, fmt.Errorf("symbol: %w", err)
	}

	nameRet, err := c.rpc.CallContract(ctx, rpc.CallMsg{To: token, Data: selName})
	if err != nil {
		return model.Erc20{}, fmt.Errorf("name: %w", err)
	}
	name, err := decodeStringResult(nameRet)
	if err != nil {
		return model.Erc20{}, fmt.Errorf("name: %w", err)
	}

	return model.Erc20{
		Chain:    c.chainID,
		Address:  strings.ToLower(token),
		Symbol:   symbol,
		Name:     name,
		Decimals: uint8(decimals),
	}, nil
}

func (c *Client) BalanceOf(ctx context.Context, token, account string) (*big.Int, error) {
	acct, err := argAddress(account)
	if err != nil {
		return nil, err
	}
	ret, err := c.rpc.CallContract(ctx, rpc.CallMsg{
		To:   token,
		Data: encodeCall(selBalanceOf, acct),
	})
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	r, err := newWordReader(ret)
	if err != nil {
		return nil, err
	}
	return r.bigUint()
}

func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	ownerArg, err := argAddress(owner)
	if err != nil {
		return nil, err
	}
	spenderArg, err := argAddress(spender)
	if err != nil {
		return nil, err
	}
	ret, err := c.rpc.CallContract(ctx, rpc.CallMsg{
		To:   token,
		Data: encodeCall(selAllowance, ownerArg, spenderArg),
	})
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	r, err := newWordReader(ret)
	if err != nil {
		return nil, err
	}
	return r.bigUint()
}

func (c *Client) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	if c.account == "" {
		return "", fmt.Errorf("evm: no sending account configured")
	}
	spenderArg, err := argAddress(spender)
	if err != nil {
		return "", err
	}
	txHash, err := c.rpc.SendTransaction(ctx, rpc.CallMsg{
		From: c.account,
		To:   token,
		Data: encodeCall(selApprove, spenderArg, argBig(amount)),
	})
	if err != nil {
		return "", fmt.Errorf("approve: %w", err)
	}
	c.logger.Info("approve submitted", "token", token, "spender", spender, "tx", txHash)
	return txHash, nil
}

func (c *Client) ProposePrice(ctx context.Context, req model.Request, price *big.Int) (string, error) {
	if c.account == "" {
		return "", fmt.Errorf("evm: no sending account configured")
	}
	ancillary, err := decodeHex(req.AncillaryData)
	if err != nil {
		return "", fmt.Errorf("ancillary data: %w", err)
	}
	args, err := requestArgs(req.Key.Requester, req.Key.Identifier, req.Key.Timestamp, ancillary)
	if err != nil {
		return "", err
	}
	args = append(args, argBig(price))
	txHash, err := c.rpc.SendTransaction(ctx, rpc.CallMsg{
		From: c.account,
		To:   c.oracle,
		Data: encodeCall(selProposePrice, args...),
	})
	if err != nil {
		return "", fmt.Errorf("proposePrice: %w", err)
	}
	c.logger.Info("proposal submitted", "request", req.Key.ID(), "price", price.String(), "tx", txHash)
	return txHash, nil
}

func (c *Client) DisputePrice(ctx context.Context, req model.Request) (string, error) {
	if c.account == "" {
		return "", fmt.Errorf("evm: no sending account configured")
	}
	ancillary, err := decodeHex(req.AncillaryData)
	if err != nil {
		return "", fmt.Errorf("ancillary data: %w", err)
	}
	args, err := requestArgs(req.Key.Requester, req.Key.Identifier, req.Key.Timestamp, ancillary)
	if err != nil {
		return "", err
	}
	txHash, err := c.rpc.SendTransaction(ctx, rpc.CallMsg{
		From: c.account,
		To:   c.oracle,
		Data: encodeCall(selDisputePrice, args...),
	})
	if err != nil {
		return "", fmt.Errorf("disputePrice: %w", err)
	}
	c.logger.Info("dispute submitted", "request", req.Key.ID(), "tx", txHash)
	return txHash, nil
}

func (c *Client) TxStatus(ctx context.Context, txHash string) (model.TxStatus, error) {
	receipt, err := c.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		return "", err
	}
	if receipt == nil {
		return model.TxStatusPending, nil
	}
	if receipt.Status == "0x1" {
		return model.TxStatusConfirmed, nil
	}
	return model.TxStatusFailed, nil
}

func (c *Client) QueryEvents(ctx context.Context, fromBlock, toBlock int64) ([]event.OracleEvent, error) {
	logs, err := c.rpc.GetLogs(ctx, rpc.LogFilter{
		FromBlock: rpc.FormatHexInt64(fromBlock),
		ToBlock:   rpc.FormatHexInt64(toBlock),
		Address:   c.oracle,
	})
	if err != nil {
		return nil, fmt.Errorf("query events [%d,%d]: %w", fromBlock, toBlock, err)
	}

	events := make([]event.OracleEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		evt, ok, err := c.decodeLog(log)
		if err != nil {
			c.logger.Warn("undecodable oracle log", "tx", log.TxHash, "index", log.LogIndex, "error", err)
			continue
		}
		if ok {
			events = append(events, evt)
		}
	}
	return events, nil
}
