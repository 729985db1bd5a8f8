// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that sync backoff
// and message highlight decay can be tested without sleeping.
//
// Production code holds a [Clock] and uses Real(). Tests use Fake(),
// which stands still until Advance is called:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go supervisor.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
package clock
