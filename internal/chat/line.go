// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

// FormatLine renders one log line. An empty alias still keeps the
// leading separator: " -> name: body".
func FormatLine(alias, name, body string) string {
	return alias + " -> " + name + ": " + body
}

// Line is one entry of the message log.
type Line struct {
	// Alias is the room's canonical alias, empty if it has none.
	Alias string
	// Name is the sender's display name or, failing that, user ID.
	Name string
	Body string
}

func (line Line) String() string {
	return FormatLine(line.Alias, line.Name, line.Body)
}

// lineQueue hands lines from the sync goroutine to the UI. It is
// unbounded: push never blocks and pop never waits.
type lineQueue struct {
	mu    sync.Mutex
	lines []Line
}

func (queue *lineQueue) push(line Line) {
	queue.mu.Lock()
	queue.lines = append(queue.lines, line)
	queue.mu.Unlock()
}

// pop removes the oldest line. ok is false when the queue is empty.
func (queue *lineQueue) pop() (line Line, ok bool) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.lines) == 0 {
		return Line{}, false
	}
	line = queue.lines[0]
	queue.lines[0] = Line{}
	queue.lines = queue.lines[1:]
	if len(queue.lines) == 0 {
		queue.lines = nil
	}
	return line, true
}

func (queue *lineQueue) pending() int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.lines)
}

// newMessageHandler returns the sync handler that feeds lines. It runs
// on the sync goroutine.
func newMessageHandler(lines *lineQueue, logger *slog.Logger) messaging.MessageHandler {
	return func(ctx context.Context, room *messaging.Room, event messaging.Event) {
		if room.Membership() != messaging.MembershipJoined {
			return
		}

		var content messaging.MessageContent
		if err := event.DecodeContent(&content); err != nil {
			logger.Debug("skipping undecodable message",
				"room_id", room.ID(),
				"event_id", event.EventID,
				"error", err,
			)
			return
		}
		if content.MsgType != messaging.MsgTypeText {
			return
		}

		lines.push(Line{
			Alias: roomAlias(room),
			Name:  senderName(ctx, room, event.Sender, logger),
			Body:  content.Body,
		})
	}
}

func roomAlias(room *messaging.Room) string {
	alias := room.CanonicalAlias()
	if alias.IsZero() {
		return ""
	}
	return alias.String()
}

// senderName resolves a display name, falling back to the full user ID
// when the member is unknown or the lookup fails.
func senderName(ctx context.Context, room *messaging.Room, sender ref.UserID, logger *slog.Logger) string {
	member, ok, err := room.Member(ctx, sender)
	if err != nil {
		if ctx.Err() == nil {
			logger.Debug("member lookup failed",
				"room_id", room.ID(),
				"user_id", sender,
				"error", err,
			)
		}
		return sender.String()
	}
	if !ok {
		return sender.String()
	}
	return member.Name()
}
