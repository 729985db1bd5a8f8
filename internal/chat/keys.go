// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the chat view. Line and page
// scrolling are the viewport's own bindings; Scroll only documents
// them.
type KeyMap struct {
	Scroll    key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Reconnect key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Scroll: key.NewBinding(
		key.WithKeys("up", "down", "k", "j", "pgup", "pgdown"),
		key.WithHelp("↑/↓ pgup/pgdn", "scroll"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "follow"),
	),
	Reconnect: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reconnect"),
		key.WithDisabled(),
	),
}

// ShortHelp implements help.KeyMap.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Scroll, keys.Top, keys.Bottom, keys.Reconnect}
}

// FullHelp implements help.KeyMap.
func (keys KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{keys.ShortHelp()}
}
