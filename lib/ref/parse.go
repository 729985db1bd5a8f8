// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// parseUserID extracts localpart and server from @localpart:server.
func parseUserID(raw string) (localpart, server string, err error) {
	return parseSigilID(raw, '@', "user ID")
}

// parseRoomAlias extracts localpart and server from #localpart:server.
func parseRoomAlias(raw string) (localpart, server string, err error) {
	return parseSigilID(raw, '#', "room alias")
}

// parseSigilID splits a sigil-prefixed Matrix identifier at the first
// colon. The server part may itself contain a colon (a port), so only
// the first one is significant.
func parseSigilID(raw string, sigil byte, kind string) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty %s", kind)
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("%s must start with '%c': %q", kind, sigil, raw)
	}
	colonIndex := strings.IndexByte(raw[1:], ':')
	if colonIndex < 0 {
		return "", "", fmt.Errorf("%s missing ':server' suffix: %q", kind, raw)
	}
	if colonIndex == 0 {
		return "", "", fmt.Errorf("%s has empty localpart: %q", kind, raw)
	}
	localpart = raw[1 : 1+colonIndex]
	server = raw[1+colonIndex+1:]
	if err := validateServer(server); err != nil {
		return "", "", fmt.Errorf("%s %q: %w", kind, raw, err)
	}
	return localpart, server, nil
}

// validateServer rejects empty server names and names containing control
// characters, whitespace or Matrix sigils.
func validateServer(server string) error {
	if server == "" {
		return fmt.Errorf("empty server name")
	}
	for index := 0; index < len(server); index++ {
		character := server[index]
		if character <= ' ' || character == '@' || character == '#' || character == '!' {
			return fmt.Errorf("invalid character %q in server name at position %d", character, index)
		}
	}
	return nil
}
