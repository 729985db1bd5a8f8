// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package shell is the top-level bubbletea model. It shows the login
// modal until a session is available, then the chat view, and never
// goes back. A frame tick polls the active component so background
// results reach the screen without the components sending messages of
// their own.
//
// Warnings and errors logged anywhere in the program appear briefly in
// a status line at the bottom of the screen through [LogHandler].
package shell
