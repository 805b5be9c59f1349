package domain

import (
	"errors"
	"testing"

	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
)

func foldAll(state State, events []Event) State {
	for _, evt := range events {
		state = Fold(state, evt)
	}
	return state
}

func createdState(t *testing.T, id, name string, friends ...string) State {
	t.Helper()
	decision, err := Decide(id, EmptyState(), CreateUser{User: User{ID: id, Name: name, Friends: friends}})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return foldAll(EmptyState(), decision.Events)
}

func TestCreateUserEmitsCreationAndInitialRequests(t *testing.T) {
	decision, err := Decide("alice", EmptyState(), CreateUser{User: User{
		ID:      "alice",
		Name:    "Alice",
		Friends: []string{"bob", "carol"},
	}})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(decision.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(decision.Events))
	}
	if decision.Events[0].Type != TypeUserCreated || decision.Events[0].Name != "Alice" {
		t.Fatalf("unexpected first event: %+v", decision.Events[0])
	}
	for i, friendID := range []string{"bob", "carol"} {
		evt := decision.Events[i+1]
		if evt.Type != TypeFriendRequested || evt.FriendID != friendID {
			t.Fatalf("unexpected request event %d: %+v", i+1, evt)
		}
	}

	state := foldAll(EmptyState(), decision.Events)
	if !state.Created() {
		t.Fatal("expected created state")
	}
	if !state.HasRequest("bob") || !state.HasRequest("carol") {
		t.Fatal("expected pending requests for initial friends")
	}
}

func TestCreateUserRejectedWhenAlreadyCreated(t *testing.T) {
	state := createdState(t, "alice", "Alice")
	_, err := Decide("alice", state, CreateUser{User: User{ID: "alice", Name: "Alice"}})
	if !errors.Is(err, platformerrors.New(platformerrors.CodeUserAlreadyCreated, "")) {
		t.Fatalf("expected USER_ALREADY_CREATED, got %v", err)
	}
}

func TestCreateUserValidatesInput(t *testing.T) {
	_, err := Decide("alice", EmptyState(), CreateUser{User: User{ID: "alice"}})
	if !errors.Is(err, platformerrors.New(platformerrors.CodeUserNameEmpty, "")) {
		t.Fatalf("expected USER_NAME_EMPTY, got %v", err)
	}
	_, err = Decide("", EmptyState(), CreateUser{User: User{Name: "Alice"}})
	if !errors.Is(err, platformerrors.New(platformerrors.CodeUserIDEmpty, "")) {
		t.Fatalf("expected USER_ID_EMPTY, got %v", err)
	}
}

func TestCommandsRejectedBeforeCreation(t *testing.T) {
	commands := []Command{
		RequestAddFriend{FriendID: "bob"},
		AcceptAddFriend{FriendID: "bob"},
		RejectAddFriend{FriendID: "bob"},
	}
	for _, cmd := range commands {
		decision, err := Decide("alice", EmptyState(), cmd)
		if !errors.Is(err, platformerrors.New(platformerrors.CodeUserNotCreated, "")) {
			t.Fatalf("%T: expected USER_NOT_CREATED, got %v", cmd, err)
		}
		if len(decision.Events) != 0 {
			t.Fatalf("%T: rejection emitted events", cmd)
		}
	}
}

func TestRequestAddFriendIsIdempotent(t *testing.T) {
	state := createdState(t, "alice", "Alice")

	decision, err := Decide("alice", state, RequestAddFriend{FriendID: "bob"})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if len(decision.Events) != 1 || decision.Events[0].Type != TypeFriendRequested {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	state = foldAll(state, decision.Events)

	// Duplicate request: no-op success, no event.
	decision, err = Decide("alice", state, RequestAddFriend{FriendID: "bob"})
	if err != nil {
		t.Fatalf("duplicate request: %v", err)
	}
	if len(decision.Events) != 0 {
		t.Fatalf("expected no events for duplicate request, got %d", len(decision.Events))
	}
}

func TestAcceptAddFriendMovesRequestToFriends(t *testing.T) {
	state := createdState(t, "alice", "Alice", "bob")

	decision, err := Decide("alice", state, AcceptAddFriend{FriendID: "bob"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(decision.Events) != 1 || decision.Events[0].Type != TypeFriendAccepted {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	state = foldAll(state, decision.Events)
	if !state.User.HasFriend("bob") {
		t.Fatal("expected bob in friends")
	}
	if state.HasRequest("bob") {
		t.Fatal("expected request cleared")
	}

	// Second accept for the same target is a no-op success.
	decision, err = Decide("alice", state, AcceptAddFriend{FriendID: "bob"})
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if len(decision.Events) != 0 {
		t.Fatalf("expected no events for repeated accept, got %d", len(decision.Events))
	}
}

func TestAcceptWithoutRequestIsNoOp(t *testing.T) {
	state := createdState(t, "alice", "Alice")
	decision, err := Decide("alice", state, AcceptAddFriend{FriendID: "mallory"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(decision.Events) != 0 {
		t.Fatal("expected no events without a pending request")
	}
}

func TestRejectAddFriendClearsRequestOnly(t *testing.T) {
	state := createdState(t, "alice", "Alice", "bob")

	decision, err := Decide("alice", state, RejectAddFriend{FriendID: "bob"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if len(decision.Events) != 1 || decision.Events[0].Type != TypeFriendRejected {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	state = foldAll(state, decision.Events)
	if state.HasRequest("bob") {
		t.Fatal("expected request cleared")
	}
	if state.User.HasFriend("bob") {
		t.Fatal("expected bob not in friends")
	}

	decision, err = Decide("alice", state, RejectAddFriend{FriendID: "bob"})
	if err != nil {
		t.Fatalf("second reject: %v", err)
	}
	if len(decision.Events) != 0 {
		t.Fatal("expected no events for repeated reject")
	}
}

func TestGetUserReturnsSnapshotWithoutEvents(t *testing.T) {
	decision, err := Decide("alice", EmptyState(), GetUser{})
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(decision.Events) != 0 {
		t.Fatal("expected read-only command to emit no events")
	}
	reply := decision.Reply.(GetUserReply)
	if reply.User != nil {
		t.Fatal("expected nil user before creation")
	}

	state := createdState(t, "alice", "Alice")
	decision, err = Decide("alice", state, GetUser{})
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	reply = decision.Reply.(GetUserReply)
	if reply.User == nil || reply.User.Name != "Alice" {
		t.Fatalf("unexpected snapshot: %+v", reply.User)
	}

	// The snapshot is a copy: mutating it must not leak into state.
	reply.User.Friends = append(reply.User.Friends, "mallory")
	if state.User.HasFriend("mallory") {
		t.Fatal("snapshot mutation leaked into aggregate state")
	}
}
