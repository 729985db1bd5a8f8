// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// MatrixError is a structured error response from the homeserver.
// Extract it with errors.As:
//
//	var matrixErr *MatrixError
//	if errors.As(err, &matrixErr) && matrixErr.Code == ErrCodeForbidden { ... }
type MatrixError struct {
	// Code is the Matrix error code, e.g. "M_FORBIDDEN".
	Code string `json:"errcode"`
	// Message is the human-readable description from the server.
	Message string `json:"error"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Matrix error codes the client reacts to.
const (
	ErrCodeForbidden       = "M_FORBIDDEN"
	ErrCodeUnknownToken    = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound        = "M_NOT_FOUND"
	ErrCodeLimitExceeded   = "M_LIMIT_EXCEEDED"
	ErrCodeUnrecognized    = "M_UNRECOGNIZED"
	ErrCodeUnknown         = "M_UNKNOWN"
	ErrCodeUserDeactivated = "M_USER_DEACTIVATED"
)

// IsMatrixError reports whether err is a *MatrixError with the given code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

// ServerMessage returns the text a user should see for err: the
// server's own message for a *MatrixError, otherwise err.Error().
func ServerMessage(err error) string {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) && matrixErr.Message != "" {
		return matrixErr.Message
	}
	return err.Error()
}
