// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package login

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the login modal.
type KeyMap struct {
	Submit   key.Binding
	Next     key.Binding
	Previous key.Binding

	// Method list navigation.
	Up   key.Binding
	Down key.Binding

	// Back returns focus to the homeserver field.
	Back key.Binding

	TogglePassword key.Binding
}

// DefaultKeyMap is the built-in key binding set. Letter keys are left
// to the text inputs.
var DefaultKeyMap = KeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next field"),
	),
	Previous: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("S-tab", "previous field"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "previous method"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next method"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "change homeserver"),
	),
	TogglePassword: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "show/hide password"),
	),
}

// ShortHelp implements help.KeyMap.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Submit, keys.Next, keys.Back, keys.TogglePassword}
}

// FullHelp implements help.KeyMap.
func (keys KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{keys.Submit, keys.Next, keys.Previous},
		{keys.Up, keys.Down, keys.Back, keys.TogglePassword},
	}
}
