package domain

// Command is a request processed by one friend entity, strictly one at a
// time per entity id.
type Command interface {
	isCommand()
}

// CreateUser creates the user and records a request toward each initial
// friend, persisted as one atomic batch.
type CreateUser struct {
	User User
}

// RequestAddFriend records an outgoing friend request on this entity.
type RequestAddFriend struct {
	FriendID string
}

// AcceptAddFriend converts a recorded request into a friendship.
type AcceptAddFriend struct {
	FriendID string
}

// RejectAddFriend discards a recorded request.
type RejectAddFriend struct {
	FriendID string
}

// GetUser reads the current user snapshot; it never emits events.
type GetUser struct{}

// GetUserReply carries the snapshot returned for GetUser.
type GetUserReply struct {
	User *User
}

func (CreateUser) isCommand()       {}
func (RequestAddFriend) isCommand() {}
func (AcceptAddFriend) isCommand()  {}
func (RejectAddFriend) isCommand()  {}
func (GetUser) isCommand()          {}
