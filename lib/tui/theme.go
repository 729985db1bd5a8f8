// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme is the colour palette of the UI. Colours are ANSI 256-colour
// codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Accent     lipgloss.Color

	// Status line colours.
	ErrorText   lipgloss.Color
	WarningText lipgloss.Color
	SuccessText lipgloss.Color

	// Message parts.
	AliasForeground lipgloss.Color
	NameForeground  lipgloss.Color

	// UI chrome.
	BorderColor lipgloss.Color
	HelpText    lipgloss.Color
	Backdrop    lipgloss.Color

	// HotAccent tints freshly arrived messages; WarmAccent takes over
	// as the highlight decays.
	HotAccent  lipgloss.Color
	WarmAccent lipgloss.Color
}

// DarkTheme is the palette for dark terminal backgrounds.
var DarkTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),
	Accent:     lipgloss.Color("79"), // sea green

	ErrorText:   lipgloss.Color("203"),
	WarningText: lipgloss.Color("220"),
	SuccessText: lipgloss.Color("114"),

	AliasForeground: lipgloss.Color("75"),
	NameForeground:  lipgloss.Color("180"),

	BorderColor: lipgloss.Color("240"),
	HelpText:    lipgloss.Color("241"),
	Backdrop:    lipgloss.Color("236"),

	HotAccent:  lipgloss.Color("58"),
	WarmAccent: lipgloss.Color("236"),
}

// LightTheme is the palette for light terminal backgrounds.
var LightTheme = Theme{
	NormalText: lipgloss.Color("235"),
	FaintText:  lipgloss.Color("243"),
	Accent:     lipgloss.Color("29"),

	ErrorText:   lipgloss.Color("160"),
	WarningText: lipgloss.Color("130"),
	SuccessText: lipgloss.Color("28"),

	AliasForeground: lipgloss.Color("25"),
	NameForeground:  lipgloss.Color("94"),

	BorderColor: lipgloss.Color("248"),
	HelpText:    lipgloss.Color("245"),
	Backdrop:    lipgloss.Color("254"),

	HotAccent:  lipgloss.Color("229"),
	WarmAccent: lipgloss.Color("255"),
}

// ThemeFor returns the theme named "dark" or "light". Any other name
// (normally "auto") asks the terminal for its background colour.
func ThemeFor(name string) Theme {
	return themeFor(name, termenv.HasDarkBackground)
}

func themeFor(name string, hasDarkBackground func() bool) Theme {
	switch name {
	case "dark":
		return DarkTheme
	case "light":
		return LightTheme
	default:
		if hasDarkBackground() {
			return DarkTheme
		}
		return LightTheme
	}
}
