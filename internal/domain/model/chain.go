package model

import "strconv"

// ChainID is the EVM chain identifier (eth_chainId).
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainOptimism ChainID = 10
	ChainPolygon  ChainID = 137
	ChainBoba     ChainID = 288
	ChainArbitrum ChainID = 42161
)

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// TxStatus is the lifecycle of a submitted transaction as seen by the client.
type TxStatus string

const (
	TxStatusPending   TxStatus = "PENDING"
	TxStatusConfirmed TxStatus = "CONFIRMED"
	TxStatusFailed    TxStatus = "FAILED"
)
