// Package ratelimit bounds outgoing JSON-RPC call rate per chain so the
// syncer stays inside node-provider quotas.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Darruma/protocol/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter is a token-bucket limiter scoped to one chain's RPC endpoint.
type Limiter struct {
	bucket *rate.Limiter
	chain  string
}

// NewLimiter allows rps calls per second with burst extra capacity.
func NewLimiter(rps float64, burst int, chain string) *Limiter {
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
		chain:  chain,
	}
}

// Wait blocks until the limiter releases one token, or ctx is done.
// Reserve() is used instead of Wait() so exactly one token is consumed
// per call even when the context is cancelled mid-wait.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.bucket.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token for chain %s", l.chain)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	metrics.RPCRateLimitWaits.WithLabelValues(l.chain).Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// RecordRPCCall bumps the per-method call counter with a coarse status
// derived from err.
func RecordRPCCall(chain, method string, err error) {
	metrics.RPCCallsTotal.WithLabelValues(chain, method, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "circuit"):
		return "circuit_open"
	case strings.Contains(lower, "500") || strings.Contains(lower, "502") || strings.Contains(lower, "503") || strings.Contains(lower, "internal server error"):
		return "server_error"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "network is unreachable") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "broken pipe") || strings.Contains(lower, "eof"):
		return "network_error"
	default:
		return "client_error"
	}
}
