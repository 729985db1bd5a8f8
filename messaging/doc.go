// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a small Matrix client-server API client: enough
// to discover a homeserver, log in, and follow room timelines.
//
// [Client] is unauthenticated. It probes the homeserver
// ([Client.Connect]), lists the advertised login flows
// ([Client.LoginFlows]) and authenticates with a password
// ([Client.Login]), a login token ([Client.LoginToken]) or a browser
// based single sign-on round trip ([Client.LoginSSO]). Each returns a
// [DirectSession] whose access token lives in a secret.Buffer; call
// Close to release it.
//
// [Syncer] long-polls /sync on a [Session]. It tracks per-room
// membership, canonical aliases and member display names, and hands
// every timeline m.room.message event to the handlers registered with
// [Syncer.OnMessage]. The syncer does not retry: errors are returned
// to the caller, which owns the retry policy.
//
// All API errors are [*MatrixError] values carrying the Matrix error
// code and HTTP status. [IsMatrixError] tests for a specific code.
// Request URLs are built by string concatenation with url.PathEscape
// rather than url.URL to avoid double-encoding path segments.
package messaging
