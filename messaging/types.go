// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
)

// Login flow types.
const (
	LoginTypePassword = "m.login.password"
	LoginTypeSSO      = "m.login.sso"
	LoginTypeToken    = "m.login.token"
)

// AuthResponse is the response from a successful login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// LoginRequest is the body of POST /login. Password is set for
// m.login.password, Token for m.login.token.
type LoginRequest struct {
	Type                     string          `json:"type"`
	Identifier               *UserIdentifier `json:"identifier,omitempty"`
	Password                 string          `json:"password,omitempty"`
	Token                    string          `json:"token,omitempty"`
	DeviceID                 string          `json:"device_id,omitempty"`
	InitialDeviceDisplayName string          `json:"initial_device_display_name,omitempty"`
}

// UserIdentifier identifies the account for password login. User may
// be a bare localpart or a full user ID.
type UserIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// LoginFlowsResponse is the response from GET /login.
type LoginFlowsResponse struct {
	Flows []LoginFlow `json:"flows"`
}

// LoginFlow is one advertised way to log in.
type LoginFlow struct {
	Type string `json:"type"`

	// IdentityProviders lists the upstream providers of an m.login.sso
	// flow. Empty means the homeserver picks the provider itself.
	IdentityProviders []IdentityProvider `json:"identity_providers,omitempty"`
}

// IdentityProvider is an SSO identity provider advertised by the
// homeserver.
type IdentityProvider struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Brand string `json:"brand,omitempty"`
}

// ServerVersionsResponse is the response from GET /_matrix/client/versions.
type ServerVersionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features,omitempty"`
}

// WellKnownClient is the .well-known/matrix/client document.
type WellKnownClient struct {
	Homeserver struct {
		BaseURL string `json:"base_url"`
	} `json:"m.homeserver"`
}

// Event is a Matrix room event as delivered by /sync.
type Event struct {
	EventID        string         `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	StateKey       *string        `json:"state_key,omitempty"`
}

// IsState reports whether the event carries a state key.
func (e Event) IsState() bool {
	return e.StateKey != nil
}

// DecodeContent unmarshals the event content into target.
func (e Event) DecodeContent(target any) error {
	data, err := json.Marshal(e.Content)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// MsgTypeText is the msgtype of plain text messages.
const MsgTypeText = "m.text"

// CanonicalAliasContent is the content of m.room.canonical_alias.
type CanonicalAliasContent struct {
	Alias      string   `json:"alias,omitempty"`
	AltAliases []string `json:"alt_aliases,omitempty"`
}

// SyncOptions holds the query parameters for /sync.
type SyncOptions struct {
	Since      string // next_batch token from the previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds
	SetTimeout bool   // send the timeout parameter, distinguishing "unset" from 0
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the response from /sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups rooms by the user's membership.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom is a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoom is a room the user has been invited to. Only stripped
// state is visible.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom is a room the user has left or been removed from.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection holds timeline events in order.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection holds state events.
type StateSection struct {
	Events []Event `json:"events"`
}

// RoomMember is a member of a room.
type RoomMember struct {
	UserID      ref.UserID `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Membership  string     `json:"membership"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
}

// Name returns the display name, falling back to the user ID's
// localpart when the member has not set one.
func (m RoomMember) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.UserID.Localpart()
}

// RoomMembersResponse is the response from GET /rooms/{roomId}/members.
type RoomMembersResponse struct {
	Chunk []RoomMemberEvent `json:"chunk"`
}

// RoomMemberEvent is an m.room.member state event.
type RoomMemberEvent struct {
	Type     string            `json:"type"`
	StateKey string            `json:"state_key"`
	Sender   ref.UserID        `json:"sender"`
	Content  RoomMemberContent `json:"content"`
}

// RoomMemberContent is the content of an m.room.member event.
type RoomMemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
