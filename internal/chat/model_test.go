// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/dotmatrix-chat/dotmatrix/lib/clock"
	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
	"github.com/dotmatrix-chat/dotmatrix/lib/secret"
	"github.com/dotmatrix-chat/dotmatrix/lib/tui"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

var generalRoom = ref.MustParseRoomID("!general:test.local")

func newTestModel(t *testing.T, session *fakeSession) (*Model, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	model, err := NewModel(session, Config{
		Theme:  tui.DarkTheme,
		Logger: discardLogger(),
		Clock:  fakeClock,
	})
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	model.SetSize(80, 12)
	t.Cleanup(model.Close)
	return &model, fakeClock
}

func pollUntil(t *testing.T, model *Model, what string, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		model.Poll()
		if done() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s (status %s, %d lines)", what, model.Status().State, len(model.Lines()))
}

func waitFor(t *testing.T, what string, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestModel_ShowsMessages(t *testing.T) {
	session := newFakeSession(joinedBatch("s1", generalRoom,
		[]messaging.Event{memberState("@alice:test.local", "Alice"), aliasState("#general:test.local")},
		textMessage("@alice:test.local", "hello"),
		textMessage("@alice:test.local", "world"),
	))
	model, _ := newTestModel(t, session)

	if model.Status().State != Connecting {
		t.Errorf("initial status = %s, want connecting", model.Status().State)
	}

	// Both lines are queued before the first one is drained.
	waitFor(t, "queued lines", func() bool { return model.incoming.pending() == 2 })
	model.Poll()
	if count := len(model.Lines()); count != 1 {
		t.Fatalf("one frame drained %d lines, want 1", count)
	}
	model.Poll()
	pollUntil(t, model, "connected", func() bool { return model.Status().State == Connected })

	lines := model.Lines()
	if len(lines) != 2 || lines[0].String() != "#general:test.local -> Alice: hello" || lines[1].Body != "world" {
		t.Fatalf("lines = %+v", lines)
	}

	view := ansi.Strip(model.View())
	if !strings.Contains(view, "#general:test.local -> Alice: hello") {
		t.Errorf("view lacks the first line:\n%s", view)
	}
	if !strings.Contains(view, "connected") {
		t.Errorf("view lacks the connection status:\n%s", view)
	}
	if !strings.Contains(view, "@me:test.local") {
		t.Errorf("view lacks the user ID:\n%s", view)
	}
}

func TestModel_PollWithNothingPending(t *testing.T) {
	model, _ := newTestModel(t, newFakeSession())
	for range 3 {
		model.Poll()
	}
	if len(model.Lines()) != 0 {
		t.Errorf("lines appeared from nowhere: %+v", model.Lines())
	}
	if model.Status().State != Connecting {
		t.Errorf("status = %s, want connecting", model.Status().State)
	}
	if !strings.Contains(ansi.Strip(model.View()), "No messages yet.") {
		t.Error("empty log has no placeholder")
	}
}

func TestModel_HighlightDecays(t *testing.T) {
	session := newFakeSession(joinedBatch("s1", generalRoom,
		[]messaging.Event{memberState("@alice:test.local", "Alice")},
		textMessage("@alice:test.local", "fresh"),
	))
	model, fakeClock := newTestModel(t, session)

	pollUntil(t, model, "a line", func() bool { return len(model.Lines()) == 1 })
	if !model.hot {
		t.Fatal("new line is not highlighted")
	}

	fakeClock.Advance(tui.HeatDecayDuration + time.Second)
	model.Poll()
	if model.hot {
		t.Error("highlight did not decay")
	}
}

func TestModel_ConnectionLostAndReconnect(t *testing.T) {
	session := newFakeSession(syncResult{err: &messaging.MatrixError{
		Code:       messaging.ErrCodeUnknownToken,
		Message:    "Invalid access token",
		StatusCode: 401,
	}})
	model, _ := newTestModel(t, session)

	// Reconnect is inert until the connection is lost.
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	*model = updated

	pollUntil(t, model, "connection lost", func() bool { return model.Status().State == ConnectionLost })
	view := ansi.Strip(model.View())
	if !strings.Contains(view, "connection lost: Invalid access token") {
		t.Errorf("view does not explain the lost connection:\n%s", view)
	}
	if !strings.Contains(view, "press r to reconnect") {
		t.Errorf("view does not offer reconnecting:\n%s", view)
	}

	session.push(joinedBatch("s1", generalRoom,
		[]messaging.Event{memberState("@alice:test.local", "Alice")},
		textMessage("@alice:test.local", "back again"),
	))
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	*model = updated
	if model.Status().State != Connecting {
		t.Fatalf("status after reconnect = %s, want connecting", model.Status().State)
	}

	pollUntil(t, model, "recovered sync", func() bool {
		return model.Status().State == Connected && len(model.Lines()) == 1
	})
	if model.Reconnect() {
		t.Error("Reconnect restarted a healthy connection")
	}
}

func TestModel_ScrollingStopsFollowing(t *testing.T) {
	var timeline []messaging.Event
	for index := range 30 {
		timeline = append(timeline, textMessage("@alice:test.local", strings.Repeat("x", index+1)))
	}
	session := newFakeSession(joinedBatch("s1", generalRoom,
		[]messaging.Event{memberState("@alice:test.local", "Alice")}, timeline...))
	model, _ := newTestModel(t, session)

	pollUntil(t, model, "all lines", func() bool { return len(model.Lines()) == 30 })
	if !model.viewport.AtBottom() {
		t.Fatal("view does not follow the tail")
	}

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	*model = updated
	if model.viewport.YOffset != 0 {
		t.Errorf("top key left offset %d", model.viewport.YOffset)
	}

	session.push(joinedBatch("s2", generalRoom, nil, textMessage("@alice:test.local", "late")))
	pollUntil(t, model, "late line", func() bool { return len(model.Lines()) == 31 })
	if model.viewport.YOffset != 0 {
		t.Errorf("new line moved a scrolled-up view to offset %d", model.viewport.YOffset)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	*model = updated
	if !model.viewport.AtBottom() {
		t.Error("follow key did not return to the tail")
	}
}

func TestModel_CloseReleasesSession(t *testing.T) {
	session := newFakeSession()
	model, _ := newTestModel(t, session)
	model.Close()
	if !session.isClosed() {
		t.Error("Close did not release the session")
	}
	model.Close()
}

// TestModel_CloseWaitsForSync closes views backed by real sessions
// while /sync answers instantly, so the sync goroutine is always about
// to read the access token again.
func TestModel_CloseWaitsForSync(t *testing.T) {
	var syncRequests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /_matrix/client/v3/login", func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"user_id":"@me:test.local","access_token":"syt_me","device_id":"DEV"}`))
	})
	mux.HandleFunc("GET /_matrix/client/v3/sync", func(writer http.ResponseWriter, _ *http.Request) {
		count := syncRequests.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"next_batch":"s` + strconv.FormatInt(count, 10) + `"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: server.URL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	for range 20 {
		password, err := secret.NewFromString("hunter2")
		if err != nil {
			t.Fatalf("NewFromString failed: %v", err)
		}
		session, err := client.Login(context.Background(), messaging.PasswordLogin{
			Username:          "me",
			Password:          password,
			DeviceDisplayName: "Dotmatrix",
		})
		password.Close()
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		model, err := NewModel(session, Config{Theme: tui.DarkTheme, Logger: discardLogger()})
		if err != nil {
			t.Fatalf("NewModel failed: %v", err)
		}
		before := syncRequests.Load()
		waitFor(t, "sync traffic", func() bool { return syncRequests.Load() > before+1 })
		model.Close()

		// A request cancelled mid-flight may still reach the handler.
		time.Sleep(20 * time.Millisecond)
		stopped := syncRequests.Load()
		time.Sleep(20 * time.Millisecond)
		if after := syncRequests.Load(); after != stopped {
			t.Fatalf("%d sync requests after Close", after-stopped)
		}
	}
}
