// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"

	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
)

// Session is the set of authenticated operations the sync engine and
// the chat view need. *DirectSession is the production implementation;
// tests substitute fakes.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID.
	UserID() ref.UserID

	// Close releases any resources held by the session. Idempotent.
	Close() error

	// Sync performs one /sync request.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// GetStateEvent fetches the raw content of one state event.
	GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error)

	// GetRoomMembers returns the members of a room.
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error)
}

var _ Session = (*DirectSession)(nil)
