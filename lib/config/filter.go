// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// LoadSyncFilter reads a Matrix sync filter from a JSONC file. The
// document must be a JSON object once comments and trailing commas are
// stripped.
func LoadSyncFilter(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sync filter: %w", err)
	}

	var filter map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &filter); err != nil {
		return nil, fmt.Errorf("parsing sync filter %s: %w", path, err)
	}
	if filter == nil {
		return nil, fmt.Errorf("sync filter %s is not a JSON object", path)
	}
	return filter, nil
}
