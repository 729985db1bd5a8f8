// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dotmatrix-chat/dotmatrix/lib/ref"
)

// Membership is the local user's membership in a room.
type Membership string

const (
	MembershipUnknown Membership = ""
	MembershipJoined  Membership = "join"
	MembershipInvited Membership = "invite"
	MembershipLeft    Membership = "leave"
)

// Room is the client's view of one room, updated by the Syncer. All
// methods are safe for concurrent use.
type Room struct {
	id      ref.RoomID
	session Session
	logger  *slog.Logger

	mu             sync.Mutex
	membership     Membership
	canonicalAlias ref.RoomAlias
	members        map[ref.UserID]RoomMember
	membersLoaded  bool
}

func newRoom(id ref.RoomID, session Session, logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{
		id:      id,
		session: session,
		logger:  logger,
		members: make(map[ref.UserID]RoomMember),
	}
}

// ID returns the room ID.
func (r *Room) ID() ref.RoomID {
	return r.id
}

// Membership returns the local user's membership.
func (r *Room) Membership() Membership {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membership
}

// CanonicalAlias returns the room's canonical alias. The zero alias
// (whose String is "") means the room has none.
func (r *Room) CanonicalAlias() ref.RoomAlias {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canonicalAlias
}

// Member returns the member record for userID. Records come from sync
// state when available. On a miss the full member list is fetched once
// per room, then individual m.room.member state events. ok is false
// when the homeserver has no record of the user in this room.
func (r *Room) Member(ctx context.Context, userID ref.UserID) (member RoomMember, ok bool, err error) {
	r.mu.Lock()
	member, ok = r.members[userID]
	loaded := r.membersLoaded
	r.mu.Unlock()
	if ok {
		return member, true, nil
	}

	if !loaded {
		members, err := r.session.GetRoomMembers(ctx, r.id)
		if err != nil {
			return RoomMember{}, false, err
		}
		r.mu.Lock()
		for _, loadedMember := range members {
			if _, exists := r.members[loadedMember.UserID]; !exists {
				r.members[loadedMember.UserID] = loadedMember
			}
		}
		r.membersLoaded = true
		member, ok = r.members[userID]
		r.mu.Unlock()
		if ok {
			return member, true, nil
		}
	}

	content, err := r.session.GetStateEvent(ctx, r.id, ref.EventTypeMember, userID.String())
	if err != nil {
		if IsMatrixError(err, ErrCodeNotFound) {
			return RoomMember{}, false, nil
		}
		return RoomMember{}, false, err
	}

	var memberContent RoomMemberContent
	if err := json.Unmarshal(content, &memberContent); err != nil {
		return RoomMember{}, false, fmt.Errorf("messaging: decoding member %s in %s: %w", userID, r.id, err)
	}
	member = memberFromContent(userID, memberContent)

	r.mu.Lock()
	r.members[userID] = member
	r.mu.Unlock()
	return member, true, nil
}

func (r *Room) setMembership(membership Membership) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.membership = membership
}

// applyState folds state events into the room. Events that cannot be
// decoded are logged and skipped.
func (r *Room) applyState(events []Event) {
	for _, event := range events {
		if !event.IsState() {
			continue
		}
		switch event.Type {
		case ref.EventTypeMember:
			r.applyMember(event)
		case ref.EventTypeCanonicalAlias:
			r.applyCanonicalAlias(event)
		}
	}
}

func (r *Room) applyMember(event Event) {
	userID, err := ref.ParseUserID(*event.StateKey)
	if err != nil {
		r.logger.Debug("ignoring member event with invalid state key",
			"room_id", r.id, "state_key", *event.StateKey, "error", err)
		return
	}
	var content RoomMemberContent
	if err := event.DecodeContent(&content); err != nil {
		r.logger.Debug("ignoring undecodable member event",
			"room_id", r.id, "user_id", userID, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[userID] = memberFromContent(userID, content)
}

func (r *Room) applyCanonicalAlias(event Event) {
	if *event.StateKey != "" {
		return
	}
	var content CanonicalAliasContent
	if err := event.DecodeContent(&content); err != nil {
		r.logger.Debug("ignoring undecodable canonical alias event", "room_id", r.id, "error", err)
		return
	}

	// An absent or malformed alias clears it.
	alias, err := ref.ParseRoomAlias(content.Alias)
	if err != nil {
		alias = ref.RoomAlias{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.canonicalAlias = alias
}

func memberFromContent(userID ref.UserID, content RoomMemberContent) RoomMember {
	return RoomMember{
		UserID:      userID,
		DisplayName: content.DisplayName,
		Membership:  content.Membership,
		AvatarURL:   content.AvatarURL,
	}
}
