// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/dotmatrix-chat/dotmatrix/internal/chat"
	"github.com/dotmatrix-chat/dotmatrix/internal/login"
	"github.com/dotmatrix-chat/dotmatrix/lib/tui"
)

// State is the screen the shell shows.
type State int

const (
	LoggingIn State = iota
	InChat
)

func (state State) String() string {
	switch state {
	case LoggingIn:
		return "logging-in"
	case InChat:
		return "in-chat"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// DefaultFrameInterval is the polling period when Config leaves it
// unset.
const DefaultFrameInterval = 50 * time.Millisecond

// frameMsg is one frame tick.
type frameMsg time.Time

// quitKey ends the program from every screen.
var quitKey = key.NewBinding(
	key.WithKeys("ctrl+c"),
	key.WithHelp("C-c", "quit"),
)

// Config holds configuration for creating the shell Model.
type Config struct {
	Theme tui.Theme

	// Login drives the login modal. Required.
	Login *login.Controller

	// Homeserver pre-fills the login modal.
	Homeserver string

	// Chat configures the chat view created after login. Its Theme is
	// replaced by Config.Theme.
	Chat chat.Config

	// FrameInterval is the polling period (default
	// DefaultFrameInterval).
	FrameInterval time.Duration

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// statusLine is the log record currently shown.
type statusLine struct {
	summary  string
	level    slog.Level
	sequence int
}

// Model is the top-level bubbletea model.
type Model struct {
	state         State
	theme         tui.Theme
	frameInterval time.Duration
	logger        *slog.Logger

	controller *login.Controller
	login      login.Model

	chatConfig chat.Config
	chat       chat.Model

	status         statusLine
	statusSequence int

	// err is the failure that ended the program, if any.
	err error

	width  int
	height int
}

// New creates the shell in the LoggingIn state and starts discovery
// of config.Homeserver when one is given.
func New(config Config) Model {
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultFrameInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.Chat.Theme = config.Theme
	if config.Chat.Logger == nil {
		config.Chat.Logger = config.Logger
	}

	// A pre-filled homeserver is resolved right away so its login
	// methods are on screen without a key press.
	if strings.TrimSpace(config.Homeserver) != "" {
		config.Login.StartDiscovery(config.Homeserver)
	}

	return Model{
		state:         LoggingIn,
		theme:         config.Theme,
		frameInterval: config.FrameInterval,
		logger:        config.Logger,
		controller:    config.Login,
		login:         login.NewModel(config.Login, config.Theme, config.Homeserver),
		chatConfig:    config.Chat,
	}
}

// State returns the current screen.
func (model Model) State() State {
	return model.state
}

// Err returns the error that ended the program, or nil.
func (model Model) Err() error {
	return model.err
}

func (model Model) frameTick() tea.Cmd {
	return tea.Tick(model.frameInterval, func(now time.Time) tea.Msg {
		return frameMsg(now)
	})
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(model.login.Init(), model.frameTick())
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.login.SetSize(message.Width, model.contentHeight())
		if model.state == InChat {
			model.chat.SetSize(message.Width, model.contentHeight())
		}
		return model, nil

	case frameMsg:
		return model.frame()

	case logRecordMsg:
		model.statusSequence++
		model.status = statusLine{
			summary:  message.Summary,
			level:    message.Level,
			sequence: model.statusSequence,
		}
		sequence := model.statusSequence
		return model, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
			return logRecordFadeMsg{sequence: sequence}
		})

	case logRecordFadeMsg:
		if message.sequence == model.status.sequence {
			model.status = statusLine{}
		}
		return model, nil

	case tea.KeyMsg:
		if key.Matches(message, quitKey) {
			model.shutdown()
			return model, tea.Quit
		}
	}

	var cmd tea.Cmd
	switch model.state {
	case LoggingIn:
		model.login, cmd = model.login.Update(message)
	case InChat:
		model.chat, cmd = model.chat.Update(message)
	}
	return model, cmd
}

// frame polls the active component and performs the one transition:
// the first frame after login succeeds takes the session and opens
// the chat view.
func (model Model) frame() (tea.Model, tea.Cmd) {
	switch model.state {
	case LoggingIn:
		model.login.Poll()
		if !model.login.Ready() {
			break
		}
		session := model.login.TakeSession()
		if session == nil {
			break
		}
		chatModel, err := chat.NewModel(session, model.chatConfig)
		if err != nil {
			session.Close()
			model.err = fmt.Errorf("opening chat view: %w", err)
			model.shutdown()
			return model, tea.Quit
		}
		model.logger.Info("logged in", "user_id", session.UserID(), "device_id", session.DeviceID())
		model.controller.Close()
		model.chat = chatModel
		model.chat.SetSize(model.width, model.contentHeight())
		model.state = InChat

	case InChat:
		model.chat.Poll()
	}
	return model, model.frameTick()
}

// shutdown cancels background work of the active component.
func (model *Model) shutdown() {
	switch model.state {
	case LoggingIn:
		model.controller.Close()
	case InChat:
		model.chat.Close()
	}
}

// contentHeight is the height left for the active component above the
// status line.
func (model Model) contentHeight() int {
	return max(0, model.height-1)
}

// View implements tea.Model.
func (model Model) View() string {
	var content string
	switch model.state {
	case LoggingIn:
		content = model.login.View()
	case InChat:
		content = model.chat.View()
	}
	if model.width <= 0 {
		return content
	}
	return content + "\n" + model.renderStatusLine()
}

func (model Model) renderStatusLine() string {
	if model.status.summary == "" {
		return ""
	}
	color := model.theme.WarningText
	if model.status.level >= slog.LevelError {
		color = model.theme.ErrorText
	}
	return lipgloss.NewStyle().Foreground(color).Render(
		ansi.Truncate(model.status.summary, model.width, "…"))
}
