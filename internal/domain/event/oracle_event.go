package event

import (
	"math/big"

	"github.com/Darruma/protocol/internal/domain/model"
)

// Kind discriminates oracle log types into request lifecycle transitions.
type Kind string

const (
	KindRequestPrice Kind = "RequestPrice"
	KindProposePrice Kind = "ProposePrice"
	KindDisputePrice Kind = "DisputePrice"
	KindSettle       Kind = "Settle"
)

// OracleEvent is one decoded oracle contract log. Chain is supplied by the
// caller issuing the query; the raw log does not carry it.
type OracleEvent struct {
	Chain    model.ChainID
	Block    int64
	TxHash   string
	LogIndex int

	Kind Kind
	Key  model.RequestKey

	// Raw ancillary data (0x-prefixed hex). The key only carries its hash;
	// the raw bytes are kept so the request can be re-read from the contract.
	AncillaryData string

	// Populated depending on Kind.
	Currency      string
	Proposer      string
	Disputer      string
	ProposedPrice *big.Int
	ResolvedPrice *big.Int
	Expiration    int64
}
