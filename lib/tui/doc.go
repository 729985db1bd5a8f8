// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the terminal UI pieces shared by the login modal
// and the chat view: the colour theme, modal overlay splicing over a
// dotted backdrop, the scrollbar, and the decaying highlight used for
// newly arrived messages. Each view owns its own bubbletea model; this
// package only renders.
package tui
