// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

// fakeSession serves queued sync results. With the queue empty Sync
// blocks until the request is cancelled, like an idle long poll.
type fakeSession struct {
	mu      sync.Mutex
	results []syncResult
	members map[ref.RoomID][]messaging.RoomMember
	closed  bool
	queued  chan struct{}
}

type syncResult struct {
	response *messaging.SyncResponse
	err      error
}

func newFakeSession(results ...syncResult) *fakeSession {
	return &fakeSession{
		results: results,
		members: make(map[ref.RoomID][]messaging.RoomMember),
		queued:  make(chan struct{}, 1),
	}
}

// push queues another result and wakes a blocked Sync.
func (f *fakeSession) push(result syncResult) {
	f.mu.Lock()
	f.results = append(f.results, result)
	f.mu.Unlock()
	select {
	case f.queued <- struct{}{}:
	default:
	}
}

func (f *fakeSession) UserID() ref.UserID { return ref.MustParseUserID("@me:test.local") }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSession) Sync(ctx context.Context, _ messaging.SyncOptions) (*messaging.SyncResponse, error) {
	for {
		f.mu.Lock()
		if len(f.results) > 0 {
			result := f.results[0]
			f.results = f.results[1:]
			f.mu.Unlock()
			return result.response, result.err
		}
		f.mu.Unlock()

		select {
		case <-f.queued:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (f *fakeSession) GetStateEvent(_ context.Context, _ ref.RoomID, _ ref.EventType, _ string) (json.RawMessage, error) {
	return nil, &messaging.MatrixError{Code: messaging.ErrCodeNotFound, Message: "not found", StatusCode: 404}
}

func (f *fakeSession) GetRoomMembers(_ context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[roomID], nil
}

func stateKey(key string) *string { return &key }

func textMessage(sender, body string) messaging.Event {
	return messaging.Event{
		EventID: "$" + body,
		Type:    ref.EventTypeMessage,
		Sender:  ref.MustParseUserID(sender),
		Content: map[string]any{"msgtype": messaging.MsgTypeText, "body": body},
	}
}

func noticeMessage(sender, body string) messaging.Event {
	event := textMessage(sender, body)
	event.Content["msgtype"] = "m.notice"
	return event
}

func memberState(userID, displayName string) messaging.Event {
	return messaging.Event{
		Type:     ref.EventTypeMember,
		Sender:   ref.MustParseUserID(userID),
		StateKey: stateKey(userID),
		Content:  map[string]any{"membership": "join", "displayname": displayName},
	}
}

func aliasState(alias string) messaging.Event {
	return messaging.Event{
		Type:     ref.EventTypeCanonicalAlias,
		Sender:   ref.MustParseUserID("@admin:test.local"),
		StateKey: stateKey(""),
		Content:  map[string]any{"alias": alias},
	}
}

func joinedBatch(nextBatch string, roomID ref.RoomID, state []messaging.Event, timeline ...messaging.Event) syncResult {
	return syncResult{response: &messaging.SyncResponse{
		NextBatch: nextBatch,
		Rooms: messaging.RoomsSection{
			Join: map[ref.RoomID]messaging.JoinedRoom{
				roomID: {
					State:    messaging.StateSection{Events: state},
					Timeline: messaging.TimelineSection{Events: timeline},
				},
			},
		},
	}}
}
