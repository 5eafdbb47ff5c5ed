package model

import (
	"fmt"
	"math/big"
	"strings"
)

// RequestState mirrors the oracle contract's request state enum.
type RequestState uint8

const (
	StateInvalid RequestState = iota
	StateRequested
	StateProposed
	StateExpired
	StateDisputed
	StateResolved
	StateSettled
)

func (s RequestState) String() string {
	switch s {
	case StateInvalid:
		return "Invalid"
	case StateRequested:
		return "Requested"
	case StateProposed:
		return "Proposed"
	case StateExpired:
		return "Expired"
	case StateDisputed:
		return "Disputed"
	case StateResolved:
		return "Resolved"
	case StateSettled:
		return "Settled"
	default:
		return fmt.Sprintf("RequestState(%d)", uint8(s))
	}
}

// Terminal reports whether the state can never change again on chain.
// Invalid is included: the contract does not know the request, so there is
// nothing to refresh until an event re-introduces it.
func (s RequestState) Terminal() bool {
	return s == StateInvalid || s == StateSettled
}

// RequestKey uniquely identifies a price request across all chains.
// Chain is always part of the identity: requester/identifier/timestamp
// tuples can collide between chains.
type RequestKey struct {
	Chain             ChainID
	Requester         string
	Identifier        string
	Timestamp         int64
	AncillaryDataHash string
}

// ID renders the canonical chain-qualified key used for store addressing
// and sorted listings.
func (k RequestKey) ID() string {
	return strings.Join([]string{
		k.Chain.String(),
		strings.ToLower(k.Requester),
		k.Identifier,
		fmt.Sprintf("%d", k.Timestamp),
		strings.ToLower(k.AncillaryDataHash),
	}, "!")
}

// Valid reports whether the key carries every component of the composite
// identity.
func (k RequestKey) Valid() bool {
	return k.Chain != 0 && k.Requester != "" && k.Identifier != "" && k.Timestamp > 0
}

// Request is the locally mirrored view of one on-chain price request.
// It is created on first fetch and refreshed in place; once State reaches
// Settled the record is immutable.
type Request struct {
	Key      RequestKey
	Currency string
	State    RequestState

	// Raw ancillary data (0x-prefixed hex). The key carries only its hash;
	// the raw bytes are needed to re-issue contract reads for this request.
	AncillaryData string

	Proposer string
	Disputer string

	ProposedPrice *big.Int
	ResolvedPrice *big.Int

	Expiration     int64
	CustomLiveness int64

	Reward   *big.Int
	Bond     *big.Int
	FinalFee *big.Int

	// Block height at which this view was last refreshed.
	UpdatedBlock int64
}
