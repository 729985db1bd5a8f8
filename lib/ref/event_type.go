// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix event type such as "m.room.message".
// Event types need no validation; the named type only keeps them from
// being confused with state keys.
type EventType string

// String returns the event type string.
func (t EventType) String() string { return string(t) }

// Event types the client reads.
const (
	EventTypeMessage        EventType = "m.room.message"
	EventTypeMember         EventType = "m.room.member"
	EventTypeCanonicalAlias EventType = "m.room.canonical_alias"
)
