// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/dotmatrix-chat/dotmatrix/lib/clock"
	"github.com/dotmatrix-chat/dotmatrix/lib/tui"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

// Config holds configuration for creating a chat Model. Zero values
// select the defaults noted on each field.
type Config struct {
	Theme tui.Theme

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Clock drives retry backoff and highlight decay. Nil uses the
	// real clock.
	Clock clock.Clock

	// SyncTimeout is the long-poll timeout (default 30s).
	SyncTimeout time.Duration

	// Filter replaces messaging.DefaultFilter when set.
	Filter map[string]any

	// MaxAttempts is the number of consecutive transient sync failures
	// tolerated before the connection is declared lost (default 5).
	MaxAttempts int

	// InitialBackoff and MaxBackoff bound the retry delay (defaults 1s
	// and 30s).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (config *Config) applyDefaults() {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.SyncTimeout <= 0 {
		config.SyncTimeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = max(30*time.Second, config.InitialBackoff)
	}
}

// syncSlot is the running supervisor: its status stream, the cancel
// function of its context, and a channel closed when it has returned.
type syncSlot struct {
	status <-chan Status
	cancel context.CancelFunc
	done   <-chan struct{}
}

// stop cancels the supervisor and waits for it to return, so nothing
// touches the session afterwards.
func (slot *syncSlot) stop() {
	if slot.cancel != nil {
		slot.cancel()
	}
	if slot.done != nil {
		<-slot.done
	}
	slot.status = nil
	slot.cancel = nil
	slot.done = nil
}

// Model is the chat view.
type Model struct {
	session    messaging.Session
	syncer     *messaging.Syncer
	supervisor *supervisor
	clock      clock.Clock
	logger     *slog.Logger

	theme    tui.Theme
	keys     KeyMap
	help     help.Model
	viewport viewport.Model

	// lines is the append-only message log, in arrival order.
	lines    []Line
	incoming *lineQueue
	heat     *tui.HeatTracker[int]
	hot      bool

	sync   syncSlot
	status Status

	width  int
	height int
}

// NewModel creates the chat view for session, registers its message
// handler and starts synchronising. The Model owns session from here
// on; Close releases it.
func NewModel(session messaging.Session, config Config) (Model, error) {
	config.applyDefaults()

	syncer, err := messaging.NewSyncer(messaging.SyncerConfig{
		Session: session,
		Timeout: config.SyncTimeout,
		Filter:  config.Filter,
		Logger:  config.Logger,
	})
	if err != nil {
		return Model{}, fmt.Errorf("creating syncer: %w", err)
	}

	incoming := &lineQueue{}
	syncer.OnMessage(newMessageHandler(incoming, config.Logger))

	helpModel := help.New()
	helpModel.Styles.ShortKey = lipgloss.NewStyle().Foreground(config.Theme.HelpText).Bold(true)
	helpModel.Styles.ShortDesc = lipgloss.NewStyle().Foreground(config.Theme.HelpText)
	helpModel.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(config.Theme.FaintText)

	model := Model{
		session: session,
		syncer:  syncer,
		supervisor: &supervisor{
			syncer: syncer,
			policy: retryPolicy{
				maxAttempts:    config.MaxAttempts,
				initialBackoff: config.InitialBackoff,
				maxBackoff:     config.MaxBackoff,
			},
			clock:  config.Clock,
			logger: config.Logger,
		},
		clock:    config.Clock,
		logger:   config.Logger,
		theme:    config.Theme,
		keys:     DefaultKeyMap,
		help:     helpModel,
		viewport: viewport.New(0, 0),
		incoming: incoming,
		heat:     tui.NewHeatTracker[int](),
	}
	model.startSync()
	return model, nil
}

// startSync (re)starts the sync supervisor. A previous supervisor is
// cancelled and its status stream discarded.
func (model *Model) startSync() {
	model.sync.stop()
	ctx, cancel := context.WithCancel(context.Background())
	status := make(chan Status, 4)
	done := make(chan struct{})
	runner := model.supervisor
	model.sync = syncSlot{status: status, cancel: cancel, done: done}
	model.status = Status{State: Connecting}
	model.keys.Reconnect.SetEnabled(false)
	go func() {
		defer close(done)
		runner.run(ctx, status)
	}()
}

// Lines returns the message log.
func (model Model) Lines() []Line {
	return model.lines
}

// Status returns the last reported connection status.
func (model Model) Status() Status {
	return model.status
}

// Poll drains at most one line and one status report. Called once per
// frame; never blocks.
func (model *Model) Poll() {
	now := model.clock.Now()
	changed := false

	if line, ok := model.incoming.pop(); ok {
		model.lines = append(model.lines, line)
		model.heat.Ignite(len(model.lines)-1, now)
		changed = true
	}

	select {
	case status := <-model.sync.status:
		model.status = status
		if status.State == ConnectionLost {
			model.sync.stop()
			model.keys.Reconnect.SetEnabled(true)
		}
	default:
	}

	// One extra refresh after the last highlight decays clears it.
	wasHot := model.hot
	model.hot = model.heat.HasHot(now)
	if changed || model.hot || wasHot {
		model.refresh(now)
	}
}

// Reconnect restarts synchronisation after the connection was lost. It
// reports whether a restart happened.
func (model *Model) Reconnect() bool {
	if model.status.State != ConnectionLost {
		return false
	}
	model.logger.Info("reconnecting sync")
	model.startSync()
	return true
}

// Close stops synchronisation, waits for the sync goroutine to exit,
// and releases the session.
func (model *Model) Close() {
	model.sync.stop()
	if model.session != nil {
		model.session.Close()
		model.session = nil
	}
}

// SetSize lays the view out for the terminal dimensions.
func (model *Model) SetSize(width, height int) {
	model.width = width
	model.height = height
	model.viewport.Width = max(0, width-1)
	model.viewport.Height = max(0, height-2)
	model.help.Width = width
	model.refresh(model.clock.Now())
}

// Update handles scrolling and reconnect keys.
func (model Model) Update(message tea.Msg) (Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.SetSize(message.Width, message.Height)
		return model, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Reconnect):
			model.Reconnect()
			return model, nil
		case key.Matches(message, model.keys.Top):
			model.viewport.GotoTop()
			return model, nil
		case key.Matches(message, model.keys.Bottom):
			model.viewport.GotoBottom()
			return model, nil
		}
	}

	var cmd tea.Cmd
	model.viewport, cmd = model.viewport.Update(message)
	return model, cmd
}

// refresh re-renders the log into the viewport, keeping the view on
// the tail if it was there.
func (model *Model) refresh(now time.Time) {
	width := model.viewport.Width
	if width <= 0 {
		return
	}
	following := model.viewport.AtBottom()

	if len(model.lines) == 0 {
		model.viewport.SetContent(lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("No messages yet."))
		return
	}

	rendered := make([]string, len(model.lines))
	for index, line := range model.lines {
		rendered[index] = model.renderLine(line, width, model.heat.Heat(index, now))
	}
	model.viewport.SetContent(strings.Join(rendered, "\n"))

	if following {
		model.viewport.GotoBottom()
	}
}

// renderLine colours and wraps one line. Words longer than the width
// are broken.
func (model Model) renderLine(line Line, width int, heat float64) string {
	aliasStyle := lipgloss.NewStyle().Foreground(model.theme.AliasForeground)
	nameStyle := lipgloss.NewStyle().Foreground(model.theme.NameForeground).Bold(true)
	textStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)

	text := aliasStyle.Render(line.Alias) +
		textStyle.Render(" -> ") +
		nameStyle.Render(line.Name) +
		textStyle.Render(": "+line.Body)
	text = wrap.String(wordwrap.String(text, width), width)

	if style, ok := tui.HeatStyle(model.theme, heat); ok {
		wrapped := strings.Split(text, "\n")
		for index, row := range wrapped {
			padding := max(0, width-ansi.StringWidth(row))
			wrapped[index] = style.Render(row + strings.Repeat(" ", padding))
		}
		text = strings.Join(wrapped, "\n")
	}
	return text
}

// View renders the header, the log with its scrollbar, and the status
// line.
func (model Model) View() string {
	if model.width <= 0 || model.height <= 0 {
		return ""
	}

	header := lipgloss.NewStyle().Foreground(model.theme.Accent).Bold(true).Render("dotmatrix")
	if model.session != nil {
		header += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  " + model.session.UserID().String())
	}
	header = ansi.Truncate(header, model.width, "…")

	body := lipgloss.NewStyle().Width(model.viewport.Width).Height(model.viewport.Height).Render(model.viewport.View())
	scrollbar := tui.RenderScrollbar(model.theme, model.viewport.Height,
		model.viewport.TotalLineCount(), model.viewport.Height, model.viewport.YOffset,
		model.viewport.AtBottom())
	logView := lipgloss.JoinHorizontal(lipgloss.Top, body, scrollbar)

	footer := model.renderStatus()
	if helpView := model.help.View(model.keys); helpView != "" {
		footer += "  " + helpView
	}
	footer = ansi.Truncate(footer, model.width, "…")

	return header + "\n" + logView + "\n" + footer
}

func (model Model) renderStatus() string {
	switch model.status.State {
	case Connecting:
		return lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("connecting…")
	case Connected:
		return lipgloss.NewStyle().Foreground(model.theme.SuccessText).Render("connected")
	case Reconnecting:
		return lipgloss.NewStyle().Foreground(model.theme.WarningText).Render(fmt.Sprintf(
			"sync failed (attempt %d), retrying in %s: %s",
			model.status.Attempt, model.status.RetryIn.Round(time.Second), statusReason(model.status.Err)))
	case ConnectionLost:
		return lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render(
			"connection lost: " + statusReason(model.status.Err) + " (press r to reconnect)")
	}
	return ""
}

func statusReason(err error) string {
	if err == nil {
		return "unknown error"
	}
	return messaging.ServerMessage(err)
}
