// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
)

// MessageHandler receives timeline m.room.message events. Handlers run
// on the sync goroutine in registration order; a slow handler delays
// the next sync.
type MessageHandler func(ctx context.Context, room *Room, event Event)

// SyncerConfig holds configuration for creating a Syncer.
type SyncerConfig struct {
	// Session performs the /sync requests. Required.
	Session Session

	// Timeout is the server-side long-poll timeout for incremental
	// syncs. The initial sync always uses 0.
	Timeout time.Duration

	// Filter replaces DefaultFilter. It is sent inline as JSON.
	Filter map[string]any

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Syncer follows the /sync stream of one session. It keeps per-room
// membership, canonical alias and member state, and dispatches message
// events to handlers. Run and SyncOnce must not be called concurrently.
type Syncer struct {
	session       Session
	timeoutMillis int
	filter        string
	logger        *slog.Logger

	mu        sync.Mutex
	handlers  []MessageHandler
	rooms     map[ref.RoomID]*Room
	nextBatch string
}

// DefaultFilter returns the built-in sync filter: room timelines and
// the state needed to label messages, without presence or account data.
func DefaultFilter() map[string]any {
	return map[string]any{
		"room": map[string]any{
			"timeline": map[string]any{"limit": 20},
			"state": map[string]any{
				"types":             []string{ref.EventTypeMember.String(), ref.EventTypeCanonicalAlias.String()},
				"lazy_load_members": true,
			},
			"ephemeral":    map[string]any{"types": []string{}},
			"account_data": map[string]any{"types": []string{}},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
}

// NewSyncer creates a Syncer for session.
func NewSyncer(config SyncerConfig) (*Syncer, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("messaging: syncer requires a session")
	}

	filter := config.Filter
	if filter == nil {
		filter = DefaultFilter()
	}
	encoded, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("messaging: encoding sync filter: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Syncer{
		session:       config.Session,
		timeoutMillis: int(config.Timeout / time.Millisecond),
		filter:        string(encoded),
		logger:        logger,
		rooms:         make(map[ref.RoomID]*Room),
	}, nil
}

// OnMessage registers a handler for timeline m.room.message events.
func (s *Syncer) OnMessage(handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// SyncOnce performs a single /sync request and processes the response.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	s.mu.Lock()
	since := s.nextBatch
	s.mu.Unlock()

	options := SyncOptions{
		Since:      since,
		SetTimeout: true,
		Filter:     s.filter,
	}
	if since != "" {
		options.Timeout = s.timeoutMillis
	}

	response, err := s.session.Sync(ctx, options)
	if err != nil {
		return err
	}

	s.process(ctx, response)

	s.mu.Lock()
	s.nextBatch = response.NextBatch
	s.mu.Unlock()

	s.logger.Debug("sync batch processed",
		"joined", len(response.Rooms.Join),
		"invited", len(response.Rooms.Invite),
		"left", len(response.Rooms.Leave),
		"initial", since == "",
	)
	return nil
}

// process applies one sync response. Rooms are visited in ID order so
// that handler output is deterministic within a batch.
func (s *Syncer) process(ctx context.Context, response *SyncResponse) {
	s.mu.Lock()
	handlers := slices.Clone(s.handlers)
	s.mu.Unlock()

	for _, roomID := range sortedRoomIDs(response.Rooms.Invite) {
		room := s.room(roomID)
		room.setMembership(MembershipInvited)
		room.applyState(response.Rooms.Invite[roomID].InviteState.Events)
	}

	for _, roomID := range sortedRoomIDs(response.Rooms.Join) {
		joined := response.Rooms.Join[roomID]
		room := s.room(roomID)
		room.setMembership(MembershipJoined)
		room.applyState(joined.State.Events)
		s.applyTimeline(ctx, room, joined.Timeline.Events, handlers)
	}

	for _, roomID := range sortedRoomIDs(response.Rooms.Leave) {
		left := response.Rooms.Leave[roomID]
		room := s.room(roomID)
		room.setMembership(MembershipLeft)
		room.applyState(left.State.Events)
		s.applyTimeline(ctx, room, left.Timeline.Events, handlers)
	}
}

func (s *Syncer) applyTimeline(ctx context.Context, room *Room, events []Event, handlers []MessageHandler) {
	for _, event := range events {
		if event.IsState() {
			room.applyState([]Event{event})
			continue
		}
		if event.Type != ref.EventTypeMessage {
			continue
		}
		for _, handler := range handlers {
			if ctx.Err() != nil {
				return
			}
			handler(ctx, room, event)
		}
	}
}

func (s *Syncer) room(roomID ref.RoomID) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		room = newRoom(roomID, s.session, s.logger)
		s.rooms[roomID] = room
	}
	return room
}

func sortedRoomIDs[V any](rooms map[ref.RoomID]V) []ref.RoomID {
	roomIDs := make([]ref.RoomID, 0, len(rooms))
	for roomID := range rooms {
		roomIDs = append(roomIDs, roomID)
	}
	slices.SortFunc(roomIDs, func(a, b ref.RoomID) int {
		return strings.Compare(a.String(), b.String())
	})
	return roomIDs
}
