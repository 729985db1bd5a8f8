// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dotmatrix-chat/dotmatrix/lib/clock"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

// ConnectionState is the sync supervisor's view of the homeserver.
type ConnectionState int

const (
	// Connecting: no sync has completed since (re)start.
	Connecting ConnectionState = iota
	Connected
	// Reconnecting: a transient failure is being retried.
	Reconnecting
	// ConnectionLost: the supervisor gave up. Only a user-initiated
	// reconnect restarts it.
	ConnectionLost
)

func (state ConnectionState) String() string {
	switch state {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case ConnectionLost:
		return "connection lost"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(state))
	}
}

// Status is one connection status report.
type Status struct {
	State ConnectionState

	// Attempt is the number of consecutive failures so far.
	Attempt int

	// RetryIn is the backoff before the next attempt (Reconnecting).
	RetryIn time.Duration

	// Err is the failure behind Reconnecting and ConnectionLost.
	Err error
}

// syncStep performs one sync round trip. *messaging.Syncer implements
// it.
type syncStep interface {
	SyncOnce(ctx context.Context) error
}

// retryPolicy bounds sync retries.
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// backoff returns the delay after the given number of consecutive
// failures: initialBackoff doubling per failure, capped at maxBackoff.
func (policy retryPolicy) backoff(failures int) time.Duration {
	delay := policy.initialBackoff
	for range failures - 1 {
		delay *= 2
		if delay >= policy.maxBackoff {
			return policy.maxBackoff
		}
	}
	return min(delay, policy.maxBackoff)
}

// supervisor runs sync steps until ctx is cancelled or it gives up,
// reporting state changes on status.
type supervisor struct {
	syncer syncStep
	policy retryPolicy
	clock  clock.Clock
	logger *slog.Logger
}

// run blocks until ctx is cancelled or the connection is lost. Status
// sends block until drained or ctx is cancelled.
func (s *supervisor) run(ctx context.Context, status chan<- Status) {
	report := func(update Status) bool {
		select {
		case status <- update:
			return true
		case <-ctx.Done():
			return false
		}
	}

	failures := 0
	connected := false
	for {
		err := s.syncer.SyncOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			if !connected {
				connected = true
				if failures > 0 {
					s.logger.Info("sync recovered", "failed_attempts", failures)
				}
				if !report(Status{State: Connected}) {
					return
				}
			}
			failures = 0
			continue
		}

		connected = false
		failures++
		if !isTransientError(err) {
			s.logger.Error("sync failed permanently", "error", err)
			report(Status{State: ConnectionLost, Attempt: failures, Err: err})
			return
		}
		if failures >= s.policy.maxAttempts {
			s.logger.Error("sync retries exhausted", "attempts", failures, "error", err)
			report(Status{State: ConnectionLost, Attempt: failures, Err: err})
			return
		}

		delay := s.policy.backoff(failures)
		s.logger.Warn("transient sync failure, retrying",
			"attempt", failures,
			"retry_in", delay,
			"error", err,
		)
		if !report(Status{State: Reconnecting, Attempt: failures, RetryIn: delay, Err: err}) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}
	}
}

// isTransientError returns true for errors that are likely transient
// and worth retrying: connection failures, rate limiting (429), and
// server errors (5xx). Returns false for client errors (4xx except
// 429) which indicate a permanent problem.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	var matrixErr *messaging.MatrixError
	if errors.As(err, &matrixErr) {
		if matrixErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if matrixErr.StatusCode >= 500 {
			return true
		}
		if matrixErr.StatusCode >= 400 {
			return false
		}
	}

	// Connection refused, timeouts, EOF.
	return true
}
