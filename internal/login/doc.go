// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package login drives the login modal: homeserver discovery, login
// method selection, and authentication.
//
// [Controller] is the state machine. Each background operation
// (discovery, login) runs in its own goroutine and reports through a
// slot: a buffered channel owned by the controller plus the cancel
// function of the operation's context. Restarting an operation cancels
// the old context and replaces the channel, so results from a
// superseded operation are never observed. [Controller.Poll] drains at
// most one result per slot and never blocks; the UI calls it once per
// frame.
//
// [Model] is the bubbletea view over a Controller.
package login
