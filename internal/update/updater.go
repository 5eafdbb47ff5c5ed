// Package update performs single fetch-and-commit operations: one chain
// read (or bounded event query) followed by one atomic store write. It
// never retries and never loops; scheduling and retry policy belong to
// the tasks driving it.
package update

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Darruma/protocol/internal/cache"
	"github.com/Darruma/protocol/internal/chain"
	"github.com/Darruma/protocol/internal/domain/event"
	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/events"
	"github.com/Darruma/protocol/internal/metrics"
	"github.com/Darruma/protocol/internal/store"
)

const (
	tokenCacheSize = 512
	tokenCacheTTL  = time.Hour
)

// Updater binds chain clients to the store. One instance serves every
// chain; each operation targets exactly one.
type Updater struct {
	store   *store.Store
	clients map[model.ChainID]chain.Client
	tokens  *cache.LRU[string, model.Erc20]
	logger  *slog.Logger
	tracer  trace.Tracer
}

func New(st *store.Store, clients map[model.ChainID]chain.Client, logger *slog.Logger) (*Updater, error) {
	if st == nil {
		return nil, fmt.Errorf("update: store is required")
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("update: at least one chain client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		store:   st,
		clients: clients,
		tokens:  cache.NewLRU[string, model.Erc20](tokenCacheSize, tokenCacheTTL),
		logger:  logger.With("component", "update"),
		tracer:  otel.Tracer("update"),
	}, nil
}

// Store exposes the underlying store for read access.
func (u *Updater) Store() *store.Store {
	return u.store
}

// Client returns the chain client for id, for tasks that submit
// transactions directly.
func (u *Updater) Client(id model.ChainID) (chain.Client, error) {
	c, ok := u.clients[id]
	if !ok {
		return nil, fmt.Errorf("update: no client for chain %s", id)
	}
	return c, nil
}

// Chains lists every chain this updater can reach.
func (u *Updater) Chains() []model.ChainID {
	out := make([]model.ChainID, 0, len(u.clients))
	for id := range u.clients {
		out = append(out, id)
	}
	return out
}

// observe wraps one fetch operation with metrics and a span.
func (u *Updater) observe(ctx context.Context, chainID model.ChainID, op string, fn func(ctx context.Context) error) error {
	ctx, span := u.tracer.Start(ctx, "update."+op,
		trace.WithAttributes(attribute.String("chain", chainID.String())))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.UpdateLatency.WithLabelValues(chainID.String(), op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpdateErrors.WithLabelValues(chainID.String(), op).Inc()
		span.RecordError(err)
		return err
	}
	metrics.UpdateFetches.WithLabelValues(chainID.String(), op).Inc()
	return nil
}

// FetchRequest reads one request from the oracle contract by its full
// coordinates and commits the record.
func (u *Updater) FetchRequest(ctx context.Context, chainID model.ChainID, requester, identifier string, timestamp int64, ancillaryData []byte) (model.Request, error) {
	client, err := u.Client(chainID)
	if err != nil {
		return model.Request{}, err
	}

	var req model.Request
	err = u.observe(ctx, chainID, "request", func(ctx context.Context) error {
		fetched, err := client.GetRequest(ctx, requester, identifier, timestamp, ancillaryData)
		if err != nil {
			return fmt.Errorf("fetch request: %w", err)
		}
		req = fetched
		return u.store.Write(func(tx *store.Txn) error {
			return tx.Chain(chainID).SetRequest(req)
		})
	})
	return req, err
}

// RefreshRequest re-reads a request already mirrored in the store, using
// its recorded raw ancillary data.
func (u *Updater) RefreshRequest(ctx context.Context, key model.RequestKey) (model.Request, error) {
	existing, err := u.store.Read().Request(key)
	if err != nil {
		return model.Request{}, err
	}
	ancillary, err := decodeAncillary(existing.AncillaryData)
	if err != nil {
		return model.Request{}, fmt.Errorf("request %s: %w", key.ID(), err)
	}
	return u.FetchRequest(ctx, key.Chain, key.Requester, key.Identifier, key.Timestamp, ancillary)
}

// RefreshBalance reads one (token, account) balance, fetching token
// metadata on first sight of the token.
func (u *Updater) RefreshBalance(ctx context.Context, chainID model.ChainID, token, account string) error {
	client, err := u.Client(chainID)
	if err != nil {
		return err
	}

	return u.observe(ctx, chainID, "balance", func(ctx context.Context) error {
		meta, err := u.tokenInfo(ctx, client, chainID, token)
		if err != nil {
			return err
		}
		amount, err := client.BalanceOf(ctx, token, account)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", account, err)
		}
		return u.store.Write(func(tx *store.Txn) error {
			ct := tx.Chain(chainID)
			if err := ct.SetErc20(meta); err != nil {
				return err
			}
			ct.SetBalance(token, account, amount)
			return nil
		})
	})
}

// RefreshAllowance reads one (token, owner, spender) allowance.
func (u *Updater) RefreshAllowance(ctx context.Context, chainID model.ChainID, token, owner, spender string) error {
	client, err := u.Client(chainID)
	if err != nil {
		return err
	}

	return u.observe(ctx, chainID, "allowance", func(ctx context.Context) error {
		amount, err := client.Allowance(ctx, token, owner, spender)
		if err != nil {
			return fmt.Errorf("allowance %s->%s: %w", owner, spender, err)
		}
		return u.store.Write(func(tx *store.Txn) error {
			tx.Chain(chainID).SetAllowance(token, owner, spender, amount)
			return nil
		})
	})
}

// RefreshCurrentTime records the chain's latest block timestamp.
func (u *Updater) RefreshCurrentTime(ctx context.Context, chainID model.ChainID) error {
	client, err := u.Client(chainID)
	if err != nil {
		return err
	}

	return u.observe(ctx, chainID, "current_time", func(ctx context.Context) error {
		ts, err := client.BlockTime(ctx)
		if err != nil {
			return fmt.Errorf("block time: %w", err)
		}
		return u.store.Write(func(tx *store.Txn) error {
			tx.Chain(chainID).SetCurrentTime(ts)
			return nil
		})
	})
}

// RefreshLatestBlock records the chain's head block number.
func (u *Updater) RefreshLatestBlock(ctx context.Context, chainID model.ChainID) (int64, error) {
	client, err := u.Client(chainID)
	if err != nil {
		return 0, err
	}

	var head int64
	err = u.observe(ctx, chainID, "latest_block", func(ctx context.Context) error {
		n, err := client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("block number: %w", err)
		}
		head = n
		return u.store.Write(func(tx *store.Txn) error {
			tx.Chain(chainID).SetLatestBlock(n)
			return nil
		})
	})
	return head, err
}

// FetchEvents queries oracle events for the inclusive block range, folds
// them into the mirrored request records, and advances the event
// checkpoint to toBlock. The fold and the checkpoint move commit in one
// write: a failure leaves both untouched so the range can be retried.
func (u *Updater) FetchEvents(ctx context.Context, chainID model.ChainID, fromBlock, toBlock int64) ([]event.OracleEvent, error) {
	return u.fetchAndFold(ctx, chainID, fromBlock, toBlock, true)
}

// BackfillEvents folds a historical range without touching the event
// checkpoint, so catching up on the past cannot interfere with the
// forward-only watermark the new-event poller maintains.
func (u *Updater) BackfillEvents(ctx context.Context, chainID model.ChainID, fromBlock, toBlock int64) ([]event.OracleEvent, error) {
	return u.fetchAndFold(ctx, chainID, fromBlock, toBlock, false)
}

func (u *Updater) fetchAndFold(ctx context.Context, chainID model.ChainID, fromBlock, toBlock int64, advanceCheckpoint bool) ([]event.OracleEvent, error) {
	if fromBlock > toBlock {
		return nil, fmt.Errorf("fetch events: range [%d,%d] is inverted", fromBlock, toBlock)
	}
	client, err := u.Client(chainID)
	if err != nil {
		return nil, err
	}

	var applied []event.OracleEvent
	err = u.observe(ctx, chainID, "events", func(ctx context.Context) error {
		evts, err := client.QueryEvents(ctx, fromBlock, toBlock)
		if err != nil {
			return err
		}

		reader := u.store.Read()
		base := make(map[string]model.Request, len(evts))
		for _, ev := range evts {
			id := ev.Key.ID()
			if _, ok := base[id]; ok {
				continue
			}
			if existing, err := reader.Request(ev.Key); err == nil {
				base[id] = existing
			}
		}
		changed := events.Reduce(base, evts)

		if err := u.store.Write(func(tx *store.Txn) error {
			ct := tx.Chain(chainID)
			for _, req := range changed {
				if err := ct.SetRequest(req); err != nil {
					return err
				}
			}
			if advanceCheckpoint {
				return ct.SetEventCheckpoint(toBlock)
			}
			return nil
		}); err != nil {
			return err
		}

		applied = evts
		metrics.EventsApplied.WithLabelValues(chainID.String()).Add(float64(len(evts)))
		if advanceCheckpoint {
			metrics.EventCheckpoint.WithLabelValues(chainID.String()).Set(float64(toBlock))
		}
		if len(evts) > 0 {
			u.logger.Info("events applied",
				"chain", chainID.String(),
				"from", fromBlock, "to", toBlock,
				"events", len(evts), "requests", len(changed))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func decodeAncillary(hexData string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode ancillary data: %w", err)
	}
	return raw, nil
}

func (u *Updater) tokenInfo(ctx context.Context, client chain.Client, chainID model.ChainID, token string) (model.Erc20, error) {
	id := model.TokenID(chainID, token)
	if meta, ok := u.tokens.Get(id); ok {
		return meta, nil
	}
	meta, err := client.TokenInfo(ctx, token)
	if err != nil {
		return model.Erc20{}, fmt.Errorf("token info %s: %w", token, err)
	}
	u.tokens.Put(id, meta)
	return meta, nil
}
