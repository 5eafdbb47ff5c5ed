// Package stream publishes applied oracle events for downstream
// consumers (bots, UIs). The transport is pluggable: Redis streams in
// production, an in-memory buffer in tests and single-process setups.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Darruma/protocol/internal/metrics"
)

// Transport is the minimal publish surface tasks depend on.
type Transport interface {
	// PublishJSON marshals payload and appends it to the named stream.
	PublishJSON(ctx context.Context, stream string, payload any) error
	Close() error
}

// record publication and failure counters uniformly for any transport.
func observePublish(stream string, err error) error {
	if err != nil {
		metrics.StreamPublishErrors.WithLabelValues(stream).Inc()
		return err
	}
	metrics.StreamPublished.WithLabelValues(stream).Inc()
	return nil
}

func marshalPayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal stream payload: %w", err)
	}
	return data, nil
}
