// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// RoomAlias is a validated Matrix room alias (e.g., "#go:matrix.org").
//
// A room's canonical alias is published in its m.room.canonical_alias
// state event and is what the chat view prints in front of each message.
type RoomAlias struct {
	alias string
}

// ParseRoomAlias validates and wraps a raw Matrix room alias string.
func ParseRoomAlias(raw string) (RoomAlias, error) {
	if _, _, err := parseRoomAlias(raw); err != nil {
		return RoomAlias{}, err
	}
	return RoomAlias{alias: raw}, nil
}

// MustParseRoomAlias is like ParseRoomAlias but panics on error.
func MustParseRoomAlias(raw string) RoomAlias {
	alias, err := ParseRoomAlias(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRoomAlias(%q): %v", raw, err))
	}
	return alias
}

// String returns the full alias (e.g., "#go:matrix.org").
func (a RoomAlias) String() string { return a.alias }

// IsZero reports whether the RoomAlias is the zero value.
func (a RoomAlias) IsZero() bool { return a.alias == "" }

// Localpart returns the alias without the '#' sigil and ':server' suffix.
func (a RoomAlias) Localpart() string {
	localpart, _, _ := parseRoomAlias(a.alias)
	return localpart
}

// Server returns the server name of the alias.
func (a RoomAlias) Server() string {
	_, server, _ := parseRoomAlias(a.alias)
	return server
}

// MarshalText implements encoding.TextMarshaler.
func (a RoomAlias) MarshalText() ([]byte, error) {
	return []byte(a.alias), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value, which is how a cleared canonical alias is
// represented.
func (a *RoomAlias) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = RoomAlias{}
		return nil
	}
	parsed, err := ParseRoomAlias(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
