// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

func TestFormatLine(t *testing.T) {
	if got := FormatLine("#general:test.local", "Alice", "hello"); got != "#general:test.local -> Alice: hello" {
		t.Errorf("with alias: %q", got)
	}
	if got := FormatLine("", "Alice", "hello"); got != " -> Alice: hello" {
		t.Errorf("without alias: %q", got)
	}
	line := Line{Alias: "#a:b", Name: "Bob", Body: "x"}
	if line.String() != "#a:b -> Bob: x" {
		t.Errorf("Line.String() = %q", line.String())
	}
}

// syncLines runs the given batches through a syncer wired to the
// message handler and returns the produced lines.
func syncLines(t *testing.T, session *fakeSession, batches int) []string {
	t.Helper()
	syncer, err := messaging.NewSyncer(messaging.SyncerConfig{Session: session, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewSyncer failed: %v", err)
	}
	lines := &lineQueue{}
	syncer.OnMessage(newMessageHandler(lines, discardLogger()))

	for range batches {
		if err := syncer.SyncOnce(context.Background()); err != nil {
			t.Fatalf("SyncOnce failed: %v", err)
		}
	}

	var result []string
	for {
		line, ok := lines.pop()
		if !ok {
			return result
		}
		result = append(result, line.String())
	}
}

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d lines %q, want %q", len(got), got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Errorf("line %d = %q, want %q", index, got[index], want[index])
		}
	}
}

func TestMessageHandler_JoinedRoomWithAlias(t *testing.T) {
	roomID := ref.MustParseRoomID("!general:test.local")
	session := newFakeSession(joinedBatch("s1", roomID,
		[]messaging.Event{memberState("@alice:test.local", "Alice"), aliasState("#general:test.local")},
		textMessage("@alice:test.local", "hello"),
		memberState("@bob:test.local", "Bob"),
		textMessage("@bob:test.local", "hi alice"),
	))

	assertLines(t, syncLines(t, session, 1), []string{
		"#general:test.local -> Alice: hello",
		"#general:test.local -> Bob: hi alice",
	})
}

func TestMessageHandler_NoAlias(t *testing.T) {
	roomID := ref.MustParseRoomID("!quiet:test.local")
	session := newFakeSession(joinedBatch("s1", roomID,
		[]messaging.Event{memberState("@alice:test.local", "Alice")},
		textMessage("@alice:test.local", "anyone here?"),
	))

	assertLines(t, syncLines(t, session, 1), []string{" -> Alice: anyone here?"})
}

func TestMessageHandler_UnknownSenderUsesUserID(t *testing.T) {
	roomID := ref.MustParseRoomID("!general:test.local")
	session := newFakeSession(joinedBatch("s1", roomID,
		[]messaging.Event{aliasState("#general:test.local")},
		textMessage("@ghost:test.local", "boo"),
	))

	assertLines(t, syncLines(t, session, 1), []string{"#general:test.local -> @ghost:test.local: boo"})
}

func TestMessageHandler_MemberFromBulkLoad(t *testing.T) {
	roomID := ref.MustParseRoomID("!general:test.local")
	session := newFakeSession(joinedBatch("s1", roomID, nil, textMessage("@carol:test.local", "lazy")))
	session.members[roomID] = []messaging.RoomMember{
		{UserID: ref.MustParseUserID("@carol:test.local"), DisplayName: "Carol", Membership: "join"},
	}

	assertLines(t, syncLines(t, session, 1), []string{" -> Carol: lazy"})
}

func TestMessageHandler_IgnoresNonText(t *testing.T) {
	roomID := ref.MustParseRoomID("!general:test.local")
	session := newFakeSession(joinedBatch("s1", roomID,
		[]messaging.Event{memberState("@alice:test.local", "Alice")},
		noticeMessage("@alice:test.local", "bot output"),
		textMessage("@alice:test.local", "real message"),
	))

	assertLines(t, syncLines(t, session, 1), []string{" -> Alice: real message"})
}

func TestMessageHandler_IgnoresRoomsNotJoined(t *testing.T) {
	roomID := ref.MustParseRoomID("!old:test.local")
	session := newFakeSession(
		joinedBatch("s1", roomID, []messaging.Event{memberState("@alice:test.local", "Alice")}),
		syncResult{response: &messaging.SyncResponse{
			NextBatch: "s2",
			Rooms: messaging.RoomsSection{
				Leave: map[ref.RoomID]messaging.LeftRoom{
					roomID: {Timeline: messaging.TimelineSection{Events: []messaging.Event{
						textMessage("@alice:test.local", "after you left"),
					}}},
				},
			},
		}},
	)

	assertLines(t, syncLines(t, session, 2), nil)
}

func TestMessageHandler_LargeBatchDoesNotBlockSync(t *testing.T) {
	roomID := ref.MustParseRoomID("!general:test.local")
	const count = 1000
	messages := make([]messaging.Event, 0, count)
	for index := range count {
		messages = append(messages, textMessage("@alice:test.local", strconv.Itoa(index)))
	}
	session := newFakeSession(joinedBatch("s1", roomID,
		[]messaging.Event{memberState("@alice:test.local", "Alice")},
		messages...,
	))
	syncer, err := messaging.NewSyncer(messaging.SyncerConfig{Session: session, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewSyncer failed: %v", err)
	}
	lines := &lineQueue{}
	syncer.OnMessage(newMessageHandler(lines, discardLogger()))

	// Nothing drains the queue while the batch is processed.
	done := make(chan error, 1)
	go func() { done <- syncer.SyncOnce(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SyncOnce failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sync stalled on undrained lines")
	}

	if pending := lines.pending(); pending != count {
		t.Fatalf("queued %d lines, want %d", pending, count)
	}
	for index := range count {
		line, ok := lines.pop()
		if !ok || line.Body != strconv.Itoa(index) {
			t.Fatalf("line %d = %+v (ok=%v), want body %d", index, line, ok, index)
		}
	}
	if _, ok := lines.pop(); ok {
		t.Error("queue not empty after draining every line")
	}
}
