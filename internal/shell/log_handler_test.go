// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []tea.Msg
}

func (recorder *recordingSender) Send(message tea.Msg) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.messages = append(recorder.messages, message)
}

func (recorder *recordingSender) records() []logRecordMsg {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	var records []logRecordMsg
	for _, message := range recorder.messages {
		if record, ok := message.(logRecordMsg); ok {
			records = append(records, record)
		}
	}
	return records
}

func TestLogHandler_DropsBeforeProgram(t *testing.T) {
	handler := NewLogHandler(slog.LevelWarn)
	logger := slog.New(handler)
	logger.Warn("nobody listening")

	recorder := &recordingSender{}
	handler.setSender(recorder)
	if len(recorder.records()) != 0 {
		t.Fatal("record sent before the program was set")
	}
}

func TestLogHandler_FiltersAndFormats(t *testing.T) {
	handler := NewLogHandler(slog.LevelWarn)
	recorder := &recordingSender{}
	handler.setSender(recorder)
	logger := slog.New(handler)

	logger.Info("too quiet")
	logger.Warn("transient sync failure, retrying", "attempt", 2)
	logger.Error("sync failed permanently")

	records := recorder.records()
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(records), records)
	}
	if records[0].Summary != "transient sync failure, retrying (attempt=2)" || records[0].Level != slog.LevelWarn {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Summary != "sync failed permanently" || records[1].Level != slog.LevelError {
		t.Errorf("second record = %+v", records[1])
	}
}

func TestLogHandler_DerivedHandlersShareProgram(t *testing.T) {
	handler := NewLogHandler(slog.LevelWarn)
	derived := slog.New(handler).With("component", "sync").WithGroup("request")

	recorder := &recordingSender{}
	handler.setSender(recorder)
	derived.Warn("slow", "path", "/sync")

	records := recorder.records()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Summary != "slow (component=sync, request.path=/sync)" {
		t.Errorf("summary = %q", records[0].Summary)
	}
	if !handler.Enabled(context.Background(), slog.LevelError) || handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled does not follow the level")
	}
}
