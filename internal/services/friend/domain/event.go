package domain

import "time"

// EventType identifies the kind of a friend event.
type EventType string

const (
	// TypeUserCreated records the creation of a user.
	TypeUserCreated EventType = "user.created"
	// TypeFriendRequested records a friend request toward FriendID.
	TypeFriendRequested EventType = "friend.requested"
	// TypeFriendAccepted records a request converted into a friendship.
	TypeFriendAccepted EventType = "friend.accepted"
	// TypeFriendRejected records a discarded request.
	TypeFriendRejected EventType = "friend.rejected"
)

// Event is one immutable entry in the friend journal.
//
// Seq orders events within one entity; Offset orders them across the whole
// aggregate type and is the position token consumed by the read-side
// projector. Both are assigned by storage on append.
type Event struct {
	UserID    string
	Seq       uint64
	Offset    uint64
	Timestamp time.Time
	Type      EventType
	// FriendID is the counterparty for request/accept/reject events.
	FriendID string
	// Name is the display name carried by user.created.
	Name string
}
