// Package projection consumes the friend event stream and maintains the
// follower and requester read tables.
package projection

import (
	"github.com/louisbranch/chirper/internal/services/friend/domain"
	"github.com/louisbranch/chirper/internal/services/friend/storage"
)

// MutationsFor translates one journal event into read-side mutations.
//
// Relations are stored from the target's point of view: when alice requests
// bob, the requester row lands under bob's id; when alice accepts bob, the
// follower row lands under bob's id. Events that do not touch the read
// tables yield no mutations.
func MutationsFor(evt domain.Event) []storage.Mutation {
	switch evt.Type {
	case domain.TypeFriendRequested:
		return []storage.Mutation{
			{Kind: storage.MutationUpsertRequester, UserID: evt.FriendID, OtherID: evt.UserID},
		}
	case domain.TypeFriendAccepted:
		return []storage.Mutation{
			{Kind: storage.MutationUpsertFollower, UserID: evt.FriendID, OtherID: evt.UserID},
			{Kind: storage.MutationDeleteRequester, UserID: evt.FriendID, OtherID: evt.UserID},
		}
	case domain.TypeFriendRejected:
		return []storage.Mutation{
			{Kind: storage.MutationDeleteRequester, UserID: evt.FriendID, OtherID: evt.UserID},
		}
	default:
		return nil
	}
}
