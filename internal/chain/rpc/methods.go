package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	var hexNum string
	if err := json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("unmarshal block number: %w", err)
	}
	return ParseHexInt64(hexNum)
}

// BlockByTag fetches a block header by tag ("latest", "finalized") or
// hex number. Transaction bodies are never requested.
func (c *Client) BlockByTag(ctx context.Context, tag string) (*Block, error) {
	result, err := c.call(ctx, "eth_getBlockByNumber", []interface{}{tag, false})
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber(%s): %w", tag, err)
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	if block.Number == "" {
		return nil, fmt.Errorf("block %s not found", tag)
	}
	return &block, nil
}

// GetLogs runs eth_getLogs with the given filter.
func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]*Log, error) {
	result, err := c.call(ctx, "eth_getLogs", []interface{}{filter})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs: %w", err)
	}

	var logs []*Log
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	return logs, nil
}

// CallContract runs a read-only eth_call against the latest block and
// returns the raw hex return data.
func (c *Client) CallContract(ctx context.Context, msg CallMsg) (string, error) {
	result, err := c.call(ctx, "eth_call", []interface{}{msg, "latest"})
	if err != nil {
		return "", fmt.Errorf("eth_call: %w", err)
	}

	var data string
	if err := json.Unmarshal(result, &data); err != nil {
		return "", fmt.Errorf("unmarshal call result: %w", err)
	}
	return data, nil
}

// SendTransaction submits a transaction through the node's signer
// (eth_sendTransaction) and returns the transaction hash.
func (c *Client) SendTransaction(ctx context.Context, msg CallMsg) (string, error) {
	result, err := c.call(ctx, "eth_sendTransaction", []interface{}{msg})
	if err != nil {
		return "", fmt.Errorf("eth_sendTransaction: %w", err)
	}

	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return "", fmt.Errorf("unmarshal tx hash: %w", err)
	}
	return txHash, nil
}

// TransactionReceipt fetches a receipt; it returns (nil, nil) while the
// transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}

	if string(result) == "null" {
		return nil, nil
	}

	var receipt TransactionReceipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &receipt, nil
}

// ParseHexInt64 parses a 0x-prefixed hex quantity.
func ParseHexInt64(s string) (int64, error) {
	cleaned := strings.TrimPrefix(s, "0x")
	if cleaned == "" {
		return 0, fmt.Errorf("empty hex string")
	}
	n, err := strconv.ParseInt(cleaned, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", s, err)
	}
	return n, nil
}

// FormatHexInt64 renders a block number as a 0x-prefixed hex quantity.
func FormatHexInt64(n int64) string {
	return "0x" + strconv.FormatInt(n, 16)
}

// ParseHexBig parses a 0x-prefixed hex quantity of arbitrary width.
func ParseHexBig(s string) (*big.Int, error) {
	cleaned := strings.TrimPrefix(s, "0x")
	if cleaned == "" {
		return nil, fmt.Errorf("empty hex string")
	}
	n, ok := new(big.Int).SetString(cleaned, 16)
	if !ok {
		return nil, fmt.Errorf("parse hex %q", s)
	}
	return n, nil
}
