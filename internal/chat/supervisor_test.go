// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dotmatrix-chat/dotmatrix/lib/clock"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

var (
	errServerDown   = &messaging.MatrixError{Code: messaging.ErrCodeUnknown, Message: "bad gateway", StatusCode: 502}
	errRateLimited  = &messaging.MatrixError{Code: messaging.ErrCodeLimitExceeded, Message: "slow down", StatusCode: 429}
	errUnknownToken = &messaging.MatrixError{Code: messaging.ErrCodeUnknownToken, Message: "Invalid access token", StatusCode: 401}
	errConnection   = errors.New("dial tcp: connection refused")
)

// scriptedSync returns queued results, then blocks until cancelled.
type scriptedSync struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (s *scriptedSync) SyncOnce(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	if len(s.results) > 0 {
		result := s.results[0]
		s.results = s.results[1:]
		s.mu.Unlock()
		return result
	}
	s.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type supervisorRun struct {
	fakeClock *clock.FakeClock
	status    chan Status
	cancel    context.CancelFunc
	done      chan struct{}
}

func startSupervisor(t *testing.T, syncer syncStep, maxAttempts int) *supervisorRun {
	t.Helper()
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := &supervisor{
		syncer: syncer,
		policy: retryPolicy{maxAttempts: maxAttempts, initialBackoff: time.Second, maxBackoff: 4 * time.Second},
		clock:  fakeClock,
		logger: discardLogger(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	run := &supervisorRun{
		fakeClock: fakeClock,
		status:    make(chan Status, 4),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go func() {
		defer close(run.done)
		s.run(ctx, run.status)
	}()
	t.Cleanup(func() {
		cancel()
		<-run.done
	})
	return run
}

func (run *supervisorRun) next(t *testing.T) Status {
	t.Helper()
	select {
	case status := <-run.status:
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a status report")
		return Status{}
	}
}

func (run *supervisorRun) finished(t *testing.T) {
	t.Helper()
	select {
	case <-run.done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisor_RetriesTransientFailures(t *testing.T) {
	syncer := &scriptedSync{results: []error{errServerDown, errConnection, errRateLimited, nil}}
	run := startSupervisor(t, syncer, 5)

	for attempt, wantDelay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		status := run.next(t)
		if status.State != Reconnecting || status.Attempt != attempt+1 || status.RetryIn != wantDelay {
			t.Fatalf("report %d = %+v, want reconnecting attempt %d in %s", attempt, status, attempt+1, wantDelay)
		}
		run.fakeClock.WaitForTimers(1)
		run.fakeClock.Advance(wantDelay)
	}

	if status := run.next(t); status.State != Connected {
		t.Fatalf("after recovery: %+v, want connected", status)
	}
}

func TestSupervisor_ReportsConnectedOnce(t *testing.T) {
	syncer := &scriptedSync{results: []error{nil, nil, nil}}
	run := startSupervisor(t, syncer, 5)

	if status := run.next(t); status.State != Connected {
		t.Fatalf("first report = %+v, want connected", status)
	}
	// The script is exhausted once the fourth call blocks.
	deadline := time.Now().Add(5 * time.Second)
	for {
		syncer.mu.Lock()
		calls := syncer.calls
		syncer.mu.Unlock()
		if calls >= 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d sync calls", calls)
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case status := <-run.status:
		t.Errorf("unexpected second report: %+v", status)
	default:
	}
}

func TestSupervisor_PermanentFailureLosesConnection(t *testing.T) {
	run := startSupervisor(t, &scriptedSync{results: []error{errUnknownToken}}, 5)

	status := run.next(t)
	if status.State != ConnectionLost {
		t.Fatalf("report = %+v, want connection lost", status)
	}
	if !errors.Is(status.Err, errUnknownToken) {
		t.Errorf("lost status carries %v", status.Err)
	}
	if run.fakeClock.PendingCount() != 0 {
		t.Error("permanent failure scheduled a retry")
	}
	run.finished(t)
}

func TestSupervisor_GivesUpAfterMaxAttempts(t *testing.T) {
	run := startSupervisor(t, &scriptedSync{results: []error{errConnection, errConnection, errConnection, nil}}, 3)

	for attempt := 1; attempt <= 2; attempt++ {
		status := run.next(t)
		if status.State != Reconnecting || status.Attempt != attempt {
			t.Fatalf("report = %+v, want reconnecting attempt %d", status, attempt)
		}
		run.fakeClock.WaitForTimers(1)
		run.fakeClock.Advance(status.RetryIn)
	}

	status := run.next(t)
	if status.State != ConnectionLost || status.Attempt != 3 {
		t.Fatalf("report = %+v, want connection lost after 3 attempts", status)
	}
	run.finished(t)
}

func TestSupervisor_CancelDuringBackoff(t *testing.T) {
	run := startSupervisor(t, &scriptedSync{results: []error{errConnection}}, 5)

	if status := run.next(t); status.State != Reconnecting {
		t.Fatalf("report = %+v, want reconnecting", status)
	}
	run.fakeClock.WaitForTimers(1)
	run.cancel()
	run.finished(t)
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := retryPolicy{initialBackoff: time.Second, maxBackoff: 30 * time.Second}
	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for index, expected := range want {
		if got := policy.backoff(index + 1); got != expected {
			t.Errorf("backoff(%d) = %s, want %s", index+1, got, expected)
		}
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errConnection, true},
		{errServerDown, true},
		{errRateLimited, true},
		{errUnknownToken, false},
		{&messaging.MatrixError{Code: messaging.ErrCodeForbidden, StatusCode: 403}, false},
		{fmt.Errorf("sync: %w", errServerDown), true},
		{fmt.Errorf("sync: %w", errUnknownToken), false},
	}
	for _, test := range tests {
		if got := isTransientError(test.err); got != test.want {
			t.Errorf("isTransientError(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}
