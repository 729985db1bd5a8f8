// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable Matrix identifiers: user IDs
// (@localpart:server), room IDs (!opaque:server) and room aliases
// (#localpart:server).
//
// Identifiers arrive from the homeserver in /sync responses and state
// events. They are parsed once at the JSON boundary (every type
// implements encoding.TextUnmarshaler) and passed around as typed values
// afterwards, so a room alias can never be handed to code expecting a
// user ID.
package ref
