// Package tasks is the concrete task library: continuous pollers that keep
// the store fresh, and short step workflows triggered by user actions. All
// of them speak the executor's delay/transition contract; none blocks
// inside a handler body.
package tasks

import (
	"errors"
	"fmt"
	"time"

	"github.com/Darruma/protocol/internal/retry"
)

const (
	// Pollers.
	defaultRequestPollInterval = 30 * time.Second
	defaultEventPollInterval   = 50 * time.Second

	// Workflows.
	defaultMaxAttempts     = 3
	defaultConfirmAttempts = 40
	defaultConfirmInterval = 15 * time.Second
	defaultEventChunk      = 3000
)

// FatalConfigError is malformed workflow parameters: surfaced to the
// caller immediately, never retried.
type FatalConfigError struct {
	Reason string
}

func (e *FatalConfigError) Error() string {
	return "fatal config: " + e.Reason
}

func fatalf(format string, args ...any) error {
	return &FatalConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsFatalConfig reports whether err is a workflow parameter error.
func IsFatalConfig(err error) bool {
	var fatal *FatalConfigError
	return errors.As(err, &fatal)
}

// budget tracks bounded retries of a transient step inside a workflow.
type budget struct {
	attempts int
	max      int
}

// spend classifies err and reports whether the step may retry. Terminal
// errors and exhausted budgets end the workflow.
func (b *budget) spend(err error) (retryable bool) {
	b.attempts++
	if !retry.Classify(err).IsTransient() {
		return false
	}
	return b.attempts < b.max
}
