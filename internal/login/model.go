// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotmatrix-chat/dotmatrix/lib/tui"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

// modalWidth is the inner width of the login modal in columns.
const modalWidth = 48

// field is a focusable element of the login modal.
type field int

const (
	fieldHomeserver field = iota
	fieldMethods
	fieldUsername
	fieldPassword
)

// Model is the login modal. It renders the Controller's state and
// forwards submissions to it; all background work happens in the
// Controller.
type Model struct {
	controller *Controller
	theme      tui.Theme
	keys       KeyMap
	help       help.Model
	spinner    spinner.Model

	homeserver textinput.Model
	username   textinput.Model
	password   textinput.Model

	focus        field
	methodCursor int
	showPassword bool

	width  int
	height int
}

// NewModel creates the login modal for controller with the homeserver
// field pre-filled.
func NewModel(controller *Controller, theme tui.Theme, homeserver string) Model {
	homeserverInput := textinput.New()
	homeserverInput.Prompt = ""
	homeserverInput.Placeholder = "matrix.org"
	homeserverInput.SetValue(homeserver)
	homeserverInput.CharLimit = 256
	homeserverInput.Width = modalWidth - 2
	homeserverInput.Focus()

	usernameInput := textinput.New()
	usernameInput.Prompt = ""
	usernameInput.Placeholder = "@alice:example.org"
	usernameInput.CharLimit = 256
	usernameInput.Width = modalWidth - 2

	passwordInput := textinput.New()
	passwordInput.Prompt = ""
	passwordInput.Placeholder = "password"
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	passwordInput.Width = modalWidth - 2

	progress := spinner.New()
	progress.Spinner = spinner.Dot
	progress.Style = lipgloss.NewStyle().Foreground(theme.Accent)

	helpModel := help.New()
	helpModel.Styles.ShortKey = lipgloss.NewStyle().Foreground(theme.HelpText).Bold(true)
	helpModel.Styles.ShortDesc = lipgloss.NewStyle().Foreground(theme.HelpText)
	helpModel.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(theme.FaintText)
	helpModel.Width = modalWidth

	return Model{
		controller: controller,
		theme:      theme,
		keys:       DefaultKeyMap,
		help:       helpModel,
		spinner:    progress,
		homeserver: homeserverInput,
		username:   usernameInput,
		password:   passwordInput,
		focus:      fieldHomeserver,
	}
}

// Init starts the cursor blink and the progress spinner.
func (model Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, model.spinner.Tick)
}

// SetSize records the terminal dimensions.
func (model *Model) SetSize(width, height int) {
	model.width = width
	model.height = height
}

// Poll applies pending background results. Called once per frame.
func (model *Model) Poll() {
	previous := model.controller.Discovery().Status
	model.controller.Poll()
	discovery := model.controller.Discovery()

	if discovery.Status == DiscoveryResolved && previous != DiscoveryResolved {
		model.methodCursor = 0
		if model.focus == fieldHomeserver && len(discovery.Methods) > 0 {
			model.setFocus(fieldMethods)
		}
	}
}

// Ready reports whether login has succeeded.
func (model Model) Ready() bool {
	return model.controller.Ready()
}

// TakeSession hands over the authenticated session once.
func (model Model) TakeSession() *messaging.DirectSession {
	return model.controller.TakeSession()
}

// Update handles keyboard input and spinner ticks.
func (model Model) Update(message tea.Msg) (Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.SetSize(message.Width, message.Height)
		return model, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(message)
		return model, cmd

	case tea.KeyMsg:
		return model.handleKey(message)
	}

	return model.updateFocusedInput(message)
}

func (model Model) handleKey(message tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Submit):
		return model.submit()

	case key.Matches(message, model.keys.Next):
		return model, model.cycleFocus(1)

	case key.Matches(message, model.keys.Previous):
		return model, model.cycleFocus(-1)

	case key.Matches(message, model.keys.Back):
		return model, model.setFocus(fieldHomeserver)

	case key.Matches(message, model.keys.TogglePassword):
		model.showPassword = !model.showPassword
		if model.showPassword {
			model.password.EchoMode = textinput.EchoNormal
		} else {
			model.password.EchoMode = textinput.EchoPassword
		}
		return model, nil

	case model.focus == fieldMethods && key.Matches(message, model.keys.Up):
		if model.methodCursor > 0 {
			model.methodCursor--
		}
		return model, nil

	case model.focus == fieldMethods && key.Matches(message, model.keys.Down):
		if model.methodCursor < len(model.methods())-1 {
			model.methodCursor++
		}
		return model, nil
	}

	return model.updateFocusedInput(message)
}

func (model Model) submit() (Model, tea.Cmd) {
	switch model.focus {
	case fieldHomeserver:
		model.controller.SubmitHomeserver(model.homeserver.Value())
		return model, nil

	case fieldMethods:
		method, ok := model.selectedMethod()
		if !ok {
			return model, nil
		}
		if method.Kind == MethodPassword {
			return model, model.setFocus(fieldUsername)
		}
		model.controller.SubmitSSO(method)
		return model, nil

	case fieldUsername:
		return model, model.setFocus(fieldPassword)

	case fieldPassword:
		if model.controller.SubmitPassword(model.username.Value(), model.password.Value()) {
			model.password.SetValue("")
		}
		return model, nil
	}
	return model, nil
}

func (model Model) updateFocusedInput(message tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch model.focus {
	case fieldHomeserver:
		model.homeserver, cmd = model.homeserver.Update(message)
	case fieldUsername:
		model.username, cmd = model.username.Update(message)
	case fieldPassword:
		model.password, cmd = model.password.Update(message)
	}
	return model, cmd
}

// fields lists the focusable elements in display order. The method
// list appears once discovery resolved; the credential fields while the
// password method is selected.
func (model Model) fields() []field {
	fields := []field{fieldHomeserver}
	if len(model.methods()) > 0 {
		fields = append(fields, fieldMethods)
	}
	if method, ok := model.selectedMethod(); ok && method.Kind == MethodPassword {
		fields = append(fields, fieldUsername, fieldPassword)
	}
	return fields
}

func (model *Model) cycleFocus(step int) tea.Cmd {
	fields := model.fields()
	position := 0
	for index, candidate := range fields {
		if candidate == model.focus {
			position = index
			break
		}
	}
	position = (position + step + len(fields)) % len(fields)
	return model.setFocus(fields[position])
}

func (model *Model) setFocus(target field) tea.Cmd {
	model.focus = target
	model.homeserver.Blur()
	model.username.Blur()
	model.password.Blur()
	switch target {
	case fieldHomeserver:
		return model.homeserver.Focus()
	case fieldUsername:
		return model.username.Focus()
	case fieldPassword:
		return model.password.Focus()
	}
	return nil
}

func (model Model) methods() []Method {
	discovery := model.controller.Discovery()
	if discovery.Status != DiscoveryResolved {
		return nil
	}
	return discovery.Methods
}

func (model Model) selectedMethod() (Method, bool) {
	methods := model.methods()
	if model.methodCursor < 0 || model.methodCursor >= len(methods) {
		return Method{}, false
	}
	return methods[model.methodCursor], true
}

// View renders the modal centred over a dotted backdrop.
func (model Model) View() string {
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(model.theme.BorderColor).
		Padding(0, 1).
		Width(modalWidth + 2).
		Render(model.renderBody())

	if model.width <= 0 || model.height <= 0 {
		return modal
	}
	return tui.CenterOverlay(tui.Backdrop(model.theme, model.width, model.height), modal, model.width, model.height)
}

func (model Model) renderBody() string {
	titleStyle := lipgloss.NewStyle().Foreground(model.theme.Accent).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	var lines []string
	lines = append(lines, titleStyle.Render("Log in to Matrix"), "")

	lines = append(lines, model.renderLabel("Homeserver", fieldHomeserver, labelStyle))
	lines = append(lines, model.homeserver.View(), "")

	if methods := model.methods(); len(methods) > 0 {
		lines = append(lines, model.renderLabel("Login method", fieldMethods, labelStyle))
		for index, method := range methods {
			lines = append(lines, model.renderMethod(index, method))
		}
		lines = append(lines, "")
	}

	if method, ok := model.selectedMethod(); ok && method.Kind == MethodPassword {
		lines = append(lines, model.renderLabel("Username", fieldUsername, labelStyle))
		lines = append(lines, model.username.View(), "")
		lines = append(lines, model.renderLabel("Password", fieldPassword, labelStyle))
		lines = append(lines, model.password.View(), "")
	}

	if status := model.renderStatus(); status != "" {
		lines = append(lines, status, "")
	}
	lines = append(lines, model.help.View(model.keys))
	return strings.Join(lines, "\n")
}

func (model Model) renderLabel(label string, target field, style lipgloss.Style) string {
	if model.focus == target {
		return style.Foreground(model.theme.Accent).Render(label)
	}
	return style.Render(label)
}

func (model Model) renderMethod(index int, method Method) string {
	style := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	marker := "  "
	if index == model.methodCursor {
		marker = "> "
		if model.focus == fieldMethods {
			style = style.Foreground(model.theme.Accent).Bold(true)
		}
	}
	return style.Render(marker + method.Label())
}

// renderStatus describes the most relevant activity: a running or
// failed login wins over discovery.
func (model Model) renderStatus() string {
	progress := func(text string) string {
		return model.spinner.View() + " " + lipgloss.NewStyle().Foreground(model.theme.NormalText).Render(text)
	}
	failure := func(failure *Failure) string {
		text := "failed"
		if failure != nil {
			text = failure.Error()
		}
		return lipgloss.NewStyle().Foreground(model.theme.ErrorText).Width(modalWidth).Render(text)
	}

	login := model.controller.Login()
	switch login.Status {
	case LoginInProgress:
		return progress("Logging in…")
	case LoginAwaitingVerification:
		return progress("Waiting for verification in the browser…")
	case LoginSucceeded:
		return lipgloss.NewStyle().Foreground(model.theme.SuccessText).Render("Logged in")
	case LoginFailed:
		return failure(login.Failure)
	}

	discovery := model.controller.Discovery()
	switch discovery.Status {
	case DiscoveryResolving:
		return progress("Resolving homeserver…")
	case DiscoveryEnumeratingMethods:
		return progress("Listing login methods…")
	case DiscoveryFailed:
		return failure(discovery.Failure)
	case DiscoveryResolved:
		if len(discovery.Methods) == 0 {
			return lipgloss.NewStyle().Foreground(model.theme.WarningText).Width(modalWidth).
				Render("This homeserver offers no supported login methods")
		}
	}
	return ""
}
