// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the message view shown after login. It follows the
// session's sync stream in the background, turns text messages in
// joined rooms into lines of the form "{alias} -> {name}: {body}", and
// renders them as an append-only, scrollable log.
//
// Background work reaches the UI only through two streams: an unbounded
// line queue, so the sync loop never waits for the UI, and the
// connection status channel of the sync supervisor. [Model.Poll] takes
// at most one item from each per frame.
//
// Sync failures are classified like Matrix API errors elsewhere:
// connection failures, rate limits and 5xx responses are retried with
// exponential backoff; other 4xx responses end the connection. After a
// permanent failure or too many consecutive transient ones the view
// shows "connection lost" and the user may reconnect.
package chat
