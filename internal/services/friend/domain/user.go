// Package domain holds the pure social-graph state machine for friend
// entities: user state, commands, events, and the decide/fold functions.
//
// One aggregate covers one user id. Relationships spanning two users are not
// transactional; each side's events update only that side's state and the
// read-side projection reconciles the two asynchronously.
package domain

import (
	"strings"

	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
)

// User is the social-graph identity for one entity.
type User struct {
	ID      string
	Name    string
	Friends []string
}

// NormalizeUser trims and validates user fields.
func NormalizeUser(user User) (User, error) {
	user.ID = strings.TrimSpace(user.ID)
	user.Name = strings.TrimSpace(user.Name)
	if user.ID == "" {
		return User{}, platformerrors.New(platformerrors.CodeUserIDEmpty, "user id is required")
	}
	if user.Name == "" {
		return User{}, platformerrors.New(platformerrors.CodeUserNameEmpty, "user name is required")
	}
	return user, nil
}

// HasFriend reports whether friendID is in the user's friend list.
func (u User) HasFriend(friendID string) bool {
	for _, id := range u.Friends {
		if id == friendID {
			return true
		}
	}
	return false
}

// clone returns a deep copy so folded states never share slices.
func (u User) clone() User {
	copied := u
	if u.Friends != nil {
		copied.Friends = append([]string(nil), u.Friends...)
	}
	return copied
}

// State is the aggregate state for one friend entity.
//
// FriendRequests holds the ids this entity has recorded requests for; it is
// disjoint from User.Friends. Both are empty until the user is created.
type State struct {
	User           *User
	FriendRequests map[string]struct{}
}

// EmptyState returns the uninitialized aggregate state.
func EmptyState() State {
	return State{}
}

// Created reports whether the user has been created.
func (s State) Created() bool {
	return s.User != nil
}

// HasRequest reports whether a request for friendID is pending.
func (s State) HasRequest(friendID string) bool {
	_, ok := s.FriendRequests[friendID]
	return ok
}

// Snapshot returns a copy of the user safe to hand to callers.
func (s State) Snapshot() *User {
	if s.User == nil {
		return nil
	}
	copied := s.User.clone()
	return &copied
}

func (s State) cloneRequests() map[string]struct{} {
	requests := make(map[string]struct{}, len(s.FriendRequests)+1)
	for id := range s.FriendRequests {
		requests[id] = struct{}{}
	}
	return requests
}
