// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Backdrop renders a width x height field of faint dots, the surface
// the login modal floats on.
func Backdrop(theme Theme, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(theme.Backdrop)
	var row strings.Builder
	for column := range width {
		if column%2 == 0 {
			row.WriteString("·")
		} else {
			row.WriteString(" ")
		}
	}
	line := style.Render(row.String())
	lines := make([]string, height)
	for index := range lines {
		lines[index] = line
	}
	return strings.Join(lines, "\n")
}

// CenterOverlay splices modal into the middle of view. The view is
// assumed to be width columns wide and height rows tall.
func CenterOverlay(view, modal string, width, height int) string {
	modalLines := strings.Split(modal, "\n")
	modalWidth := 0
	for _, line := range modalLines {
		modalWidth = max(modalWidth, ansi.StringWidth(line))
	}
	anchorX := max(0, (width-modalWidth)/2)
	anchorY := max(0, (height-len(modalLines))/2)
	return SpliceOverlay(view, modalLines, anchorX, anchorY)
}

// SpliceOverlay replaces a rectangular region of a rendered view with
// overlay lines placed from (anchorX, anchorY). Truncation is ANSI
// aware, so escape sequences on either side of the overlay survive.
// Lines shorter than the widest overlay line are padded so the
// rectangle stays opaque.
func SpliceOverlay(view string, overlayLines []string, anchorX, anchorY int) string {
	if len(overlayLines) == 0 {
		return view
	}

	viewLines := strings.Split(view, "\n")
	overlayWidth := 0
	for _, line := range overlayLines {
		overlayWidth = max(overlayWidth, ansi.StringWidth(line))
	}

	for index, overlayLine := range overlayLines {
		viewLineIndex := anchorY + index
		if viewLineIndex < 0 || viewLineIndex >= len(viewLines) {
			continue
		}

		viewLine := viewLines[viewLineIndex]
		viewLineWidth := ansi.StringWidth(viewLine)

		var result strings.Builder
		if anchorX > 0 {
			prefix := ansi.Truncate(viewLine, anchorX, "")
			result.WriteString(prefix)
			if gap := anchorX - ansi.StringWidth(prefix); gap > 0 {
				result.WriteString(strings.Repeat(" ", gap))
			}
		}
		result.WriteString("\x1b[0m")
		result.WriteString(overlayLine)
		if pad := overlayWidth - ansi.StringWidth(overlayLine); pad > 0 {
			result.WriteString(strings.Repeat(" ", pad))
		}
		result.WriteString("\x1b[0m")

		suffixStart := anchorX + overlayWidth
		if suffixStart < viewLineWidth {
			result.WriteString(ansi.TruncateLeft(viewLine, suffixStart, ""))
		}

		viewLines[viewLineIndex] = result.String()
	}

	return strings.Join(viewLines, "\n")
}
