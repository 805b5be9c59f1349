package domain

// Fold applies a single event to aggregate state.
//
// Fold is deterministic and is the only state mutator: replaying the full
// event history from EmptyState reconstructs the exact live state. Events
// that cannot apply to the current state (which Decide never emits) leave
// the state unchanged.
func Fold(state State, evt Event) State {
	switch evt.Type {
	case TypeUserCreated:
		return State{
			User:           &User{ID: evt.UserID, Name: evt.Name},
			FriendRequests: make(map[string]struct{}),
		}
	case TypeFriendRequested:
		if state.User == nil {
			return state
		}
		requests := state.cloneRequests()
		requests[evt.FriendID] = struct{}{}
		return State{User: state.User, FriendRequests: requests}
	case TypeFriendAccepted:
		if state.User == nil {
			return state
		}
		requests := state.cloneRequests()
		delete(requests, evt.FriendID)
		user := state.User.clone()
		user.Friends = append(user.Friends, evt.FriendID)
		return State{User: &user, FriendRequests: requests}
	case TypeFriendRejected:
		if state.User == nil {
			return state
		}
		requests := state.cloneRequests()
		delete(requests, evt.FriendID)
		return State{User: state.User, FriendRequests: requests}
	default:
		return state
	}
}
