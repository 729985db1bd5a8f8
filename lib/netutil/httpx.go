// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads.
//
// A homeserver, or anything answering on its address, controls the size
// of every response body. All JSON API reads go through these helpers
// so that a pathological response cannot exhaust memory.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds Matrix API response reads. Initial syncs of
// large accounts are the biggest legitimate responses and stay far
// below it.
const MaxResponseSize int64 = 64 << 20

// MaxDocumentSize bounds small discovery documents such as
// .well-known/matrix/client.
const MaxDocumentSize int64 = 64 << 10

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return ReadLimited(body, MaxResponseSize)
}

// ReadLimited reads at most limit bytes and fails if the body is longer.
func ReadLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}

// DecodeResponse reads a body of at most limit bytes and JSON-decodes it
// into v.
func DecodeResponse(body io.Reader, limit int64, v any) error {
	data, err := ReadLimited(body, limit)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}
