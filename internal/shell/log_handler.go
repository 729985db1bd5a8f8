// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a log record to the shell's status line.
type logRecordMsg struct {
	// Summary is the one-line rendering: "message (key=value, ...)".
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears the status line unless a newer record
// replaced the one it was scheduled for.
type logRecordFadeMsg struct {
	sequence int
}

// logRecordFadeDelay is how long a record stays in the status line.
const logRecordFadeDelay = 5 * time.Second

// sender is the part of *tea.Program the handler uses.
type sender interface {
	Send(message tea.Msg)
}

// LogHandler is a slog.Handler that routes records into the bubbletea
// program for display in the status line. Records below the level are
// dropped, as are records arriving before SetProgram.
//
// Handlers derived through WithAttrs/WithGroup share the program
// pointer, so one SetProgram call reaches all of them.
//
// Handle blocks until the program accepts the message. Do not log at
// or above the handler's level from inside Update.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[sender]
	attrs   []slog.Attr
	groups  []string
}

// NewLogHandler creates a handler for records at or above level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:   level,
		program: &atomic.Pointer[sender]{},
	}
}

// SetProgram sets the program that receives records. Safe to call
// from any goroutine.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.setSender(program)
}

func (handler *LogHandler) setSender(target sender) {
	handler.program.Store(&target)
}

// Enabled implements slog.Handler.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle implements slog.Handler.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}

	prefix := ""
	if len(handler.groups) > 0 {
		prefix = strings.Join(handler.groups, ".") + "."
	}
	var attrParts []string
	for _, attr := range handler.attrs {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrParts = append(attrParts, fmt.Sprintf("%s%s=%s", prefix, attr.Key, attr.Value))
		return true
	})

	summary := record.Message
	if len(attrParts) > 0 {
		summary += " (" + strings.Join(attrParts, ", ") + ")"
	}

	(*program).Send(logRecordMsg{Summary: summary, Level: record.Level})
	return nil
}

// WithAttrs implements slog.Handler.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append(slices.Clone(handler.attrs), attrs...),
		groups:  slices.Clone(handler.groups),
	}
}

// WithGroup implements slog.Handler.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   slices.Clone(handler.attrs),
		groups:  append(slices.Clone(handler.groups), name),
	}
}
