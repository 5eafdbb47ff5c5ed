package evm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Darruma/protocol/internal/chain/rpc"
	"github.com/Darruma/protocol/internal/domain/event"
	"github.com/Darruma/protocol/internal/domain/model"
)

// decodeLog maps one raw log to an OracleEvent. ok is false for logs
// whose topic0 is not a lifecycle event (the oracle emits others too).
func (c *Client) decodeLog(log *rpc.Log) (event.OracleEvent, bool, error) {
	if len(log.Topics) == 0 {
		return event.OracleEvent{}, false, nil
	}

	var kind event.Kind
	switch strings.ToLower(log.Topics[0]) {
	case topicRequestPrice:
		kind = event.KindRequestPrice
	case topicProposePrice:
		kind = event.KindProposePrice
	case topicDisputePrice:
		kind = event.KindDisputePrice
	case topicSettle:
		kind = event.KindSettle
	default:
		return event.OracleEvent{}, false, nil
	}

	block, err := rpc.ParseHexInt64(log.BlockNumber)
	if err != nil {
		return event.OracleEvent{}, false, fmt.Errorf("log block number: %w", err)
	}
	logIndex, err := rpc.ParseHexInt64(log.LogIndex)
	if err != nil {
		return event.OracleEvent{}, false, fmt.Errorf("log index: %w", err)
	}

	evt := event.OracleEvent{
		Chain:    c.chainID,
		Block:    block,
		TxHash:   strings.ToLower(log.TxHash),
		LogIndex: int(logIndex),
		Kind:     kind,
	}

	r, err := newWordReader(log.Data)
	if err != nil {
		return event.OracleEvent{}, false, err
	}

	// Every lifecycle event's data starts identifier, timestamp,
	// ancillaryData-offset; topics[1] is the indexed requester.
	idWord, err := r.word()
	if err != nil {
		return event.OracleEvent{}, false, err
	}
	timestamp, err := r.int64()
	if err != nil {
		return event.OracleEvent{}, false, err
	}
	ancOffset, err := r.int64()
	if err != nil {
		return event.OracleEvent{}, false, err
	}
	ancillary, err := r.bytesAt(ancOffset)
	if err != nil {
		return event.OracleEvent{}, false, err
	}

	if len(log.Topics) < 2 {
		return event.OracleEvent{}, false, fmt.Errorf("%s log missing requester topic", kind)
	}
	evt.Key = model.RequestKey{
		Chain:             c.chainID,
		Requester:         topicAddress(log.Topics[1]),
		Identifier:        decodeIdentifier(idWord),
		Timestamp:         timestamp,
		AncillaryDataHash: keccakHex(ancillary),
	}
	evt.AncillaryData = "0x" + hex.EncodeToString(ancillary)

	switch kind {
	case event.KindRequestPrice:
		// data tail: currency, reward, finalFee
		currency, err := r.address()
		if err != nil {
			return event.OracleEvent{}, false, err
		}
		evt.Currency = normalizeAddress(currency)

	case event.KindProposePrice:
		// topics: requester, proposer; data tail: proposedPrice,
		// expirationTimestamp, currency
		if len(log.Topics) < 3 {
			return event.OracleEvent{}, false, fmt.Errorf("ProposePrice log missing proposer topic")
		}
		evt.Proposer = topicAddress(log.Topics[2])
		price, err := r.bigInt()
		if err != nil {
			return event.OracleEvent{}, false, err
		}
		evt.ProposedPrice = price
		expiration, err := r.int64()
		if err != nil {
			return event.OracleEvent{}, false, err
		}
		evt.Expiration = expiration
		currency, err := r.address()
		if err != nil {
			return event.OracleEvent{}, false, err
		}
		evt.Currency = normalizeAddress(currency)

	case event.KindDisputePrice:
		// topics: requester, proposer, disputer; data tail: proposedPrice
		if len(log.Topics) < 4 {
			return event.OracleEvent{}, false, fmt.Errorf("DisputePrice log missing topics")
		}
		evt.Proposer = topicAddress(log.Topics[2])
		evt.Disputer = topicAddress(log.Topics[3])
		price, err := r.bigInt()
		if err != nil {
			return event.OracleEvent{}, false, err
		}
		evt.ProposedPrice = price

	case event.KindSettle:
		// topics: requester, proposer, disputer; data tail: price, payout
		if len(log.Topics) < 4 {
			return event.OracleEvent{}, false, fmt.Errorf("Settle log missing topics")
		}
		evt.Proposer = topicAddress(log.Topics[2])
		evt.Disputer = topicAddress(log.Topics[3])
		price, err := r.bigInt()
		if err != nil {
			return event.OracleEvent{}, false, err
		}
		evt.ResolvedPrice = price
	}

	return evt, true, nil
}
