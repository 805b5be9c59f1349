package domain

import (
	"fmt"

	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
)

// Decision is the pure outcome of handling a command: events to persist plus
// the reply delivered once persistence succeeds.
type Decision struct {
	Events []Event
	Reply  any
}

// Decide computes a decision from current state and a command.
//
// A returned error is a rejection: non-fatal, reported to the caller, no
// event emitted, state untouched. An empty decision with a nil error is a
// no-op success.
func Decide(entityID string, state State, cmd Command) (Decision, error) {
	switch c := cmd.(type) {
	case CreateUser:
		return decideCreateUser(state, c)
	case RequestAddFriend:
		return decideRequestAddFriend(entityID, state, c)
	case AcceptAddFriend:
		return decideAcceptAddFriend(entityID, state, c)
	case RejectAddFriend:
		return decideRejectAddFriend(entityID, state, c)
	case GetUser:
		return Decision{Reply: GetUserReply{User: state.Snapshot()}}, nil
	default:
		return Decision{}, fmt.Errorf("unhandled command type %T", cmd)
	}
}

func decideCreateUser(state State, cmd CreateUser) (Decision, error) {
	if state.Created() {
		return Decision{}, platformerrors.WithMetadata(
			platformerrors.CodeUserAlreadyCreated,
			fmt.Sprintf("user %s is already created", state.User.ID),
			map[string]string{"user_id": state.User.ID},
		)
	}
	user, err := NormalizeUser(cmd.User)
	if err != nil {
		return Decision{}, err
	}
	events := []Event{{
		UserID: user.ID,
		Type:   TypeUserCreated,
		Name:   user.Name,
	}}
	for _, friendID := range user.Friends {
		events = append(events, Event{
			UserID:   user.ID,
			Type:     TypeFriendRequested,
			FriendID: friendID,
		})
	}
	return Decision{Events: events}, nil
}

func decideRequestAddFriend(entityID string, state State, cmd RequestAddFriend) (Decision, error) {
	if !state.Created() {
		return Decision{}, notCreated(entityID)
	}
	if state.User.HasFriend(cmd.FriendID) || state.HasRequest(cmd.FriendID) {
		return Decision{}, nil
	}
	return Decision{Events: []Event{{
		UserID:   state.User.ID,
		Type:     TypeFriendRequested,
		FriendID: cmd.FriendID,
	}}}, nil
}

func decideAcceptAddFriend(entityID string, state State, cmd AcceptAddFriend) (Decision, error) {
	if !state.Created() {
		return Decision{}, notCreated(entityID)
	}
	if state.User.HasFriend(cmd.FriendID) || !state.HasRequest(cmd.FriendID) {
		return Decision{}, nil
	}
	return Decision{Events: []Event{{
		UserID:   state.User.ID,
		Type:     TypeFriendAccepted,
		FriendID: cmd.FriendID,
	}}}, nil
}

func decideRejectAddFriend(entityID string, state State, cmd RejectAddFriend) (Decision, error) {
	if !state.Created() {
		return Decision{}, notCreated(entityID)
	}
	if !state.HasRequest(cmd.FriendID) {
		return Decision{}, nil
	}
	return Decision{Events: []Event{{
		UserID:   state.User.ID,
		Type:     TypeFriendRejected,
		FriendID: cmd.FriendID,
	}}}, nil
}

func notCreated(entityID string) error {
	return platformerrors.WithMetadata(
		platformerrors.CodeUserNotCreated,
		fmt.Sprintf("user %s is not created", entityID),
		map[string]string{"user_id": entityID},
	)
}
