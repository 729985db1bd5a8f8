// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package login

import "fmt"

// DiscoveryStatus is the phase of homeserver discovery.
type DiscoveryStatus int

const (
	DiscoveryIdle DiscoveryStatus = iota
	DiscoveryResolving
	DiscoveryEnumeratingMethods
	DiscoveryResolved
	DiscoveryFailed
)

func (status DiscoveryStatus) String() string {
	switch status {
	case DiscoveryIdle:
		return "idle"
	case DiscoveryResolving:
		return "resolving"
	case DiscoveryEnumeratingMethods:
		return "enumerating-methods"
	case DiscoveryResolved:
		return "resolved"
	case DiscoveryFailed:
		return "failed"
	default:
		return fmt.Sprintf("DiscoveryStatus(%d)", int(status))
	}
}

// DiscoveryState is the discovery slot as the UI sees it. Methods is
// set when Status is DiscoveryResolved; Failure when DiscoveryFailed.
type DiscoveryState struct {
	Status  DiscoveryStatus
	Methods []Method
	Failure *Failure
}

// InFlight reports whether a discovery is running.
func (state DiscoveryState) InFlight() bool {
	return state.Status == DiscoveryResolving || state.Status == DiscoveryEnumeratingMethods
}

// LoginStatus is the phase of authentication.
type LoginStatus int

const (
	LoginIdle LoginStatus = iota
	// LoginAwaitingVerification means the user must finish in the
	// browser (SSO).
	LoginAwaitingVerification
	LoginInProgress
	LoginSucceeded
	LoginFailed
)

func (status LoginStatus) String() string {
	switch status {
	case LoginIdle:
		return "idle"
	case LoginAwaitingVerification:
		return "awaiting-verification"
	case LoginInProgress:
		return "in-progress"
	case LoginSucceeded:
		return "succeeded"
	case LoginFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoginStatus(%d)", int(status))
	}
}

// LoginState is the login slot as the UI sees it. Failure is set when
// Status is LoginFailed.
type LoginState struct {
	Status  LoginStatus
	Failure *Failure
}

// InFlight reports whether a login is running.
func (state LoginState) InFlight() bool {
	return state.Status == LoginInProgress || state.Status == LoginAwaitingVerification
}

// FailureKind classifies login-flow failures.
type FailureKind int

const (
	// InvalidAddress: the homeserver input is not a usable URL. No
	// connection was attempted.
	InvalidAddress FailureKind = iota
	// HostUnreachable: the homeserver did not answer as a Matrix server.
	HostUnreachable
	// MethodEnumerationFailed: the login flows could not be listed.
	MethodEnumerationFailed
	// AuthenticationFailed: the homeserver rejected the login.
	AuthenticationFailed
)

func (kind FailureKind) String() string {
	switch kind {
	case InvalidAddress:
		return "invalid address"
	case HostUnreachable:
		return "host unreachable"
	case MethodEnumerationFailed:
		return "could not enumerate methods"
	case AuthenticationFailed:
		return "authentication failed"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(kind))
	}
}

// Failure is a terminal error of a discovery or login task. Message is
// the detail shown to the user: the server's own text for
// AuthenticationFailed.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (failure *Failure) Error() string {
	if failure.Message == "" {
		return failure.Kind.String()
	}
	return failure.Kind.String() + ": " + failure.Message
}

func (failure *Failure) Unwrap() error {
	return failure.Err
}
