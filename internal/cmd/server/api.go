package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
	chirpapp "github.com/louisbranch/chirper/internal/services/chirp/app"
	chirpdomain "github.com/louisbranch/chirper/internal/services/chirp/domain"
	"github.com/louisbranch/chirper/internal/services/chirp/stream"
	friendapp "github.com/louisbranch/chirper/internal/services/friend/app"
	frienddomain "github.com/louisbranch/chirper/internal/services/friend/domain"
	likeapp "github.com/louisbranch/chirper/internal/services/like/app"
)

// API exposes the chirper services over HTTP with JSON bodies. Timeline
// streams are served as newline-delimited JSON.
type API struct {
	Friends  *friendapp.Service
	Timeline *chirpapp.Service
	Likes    *likeapp.Service
}

// Handler returns the HTTP routes for the API.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", a.createUser)
	mux.HandleFunc("GET /users/{id}", a.getUser)
	mux.HandleFunc("GET /users/{id}/followers", a.listFollowers)
	mux.HandleFunc("GET /users/{id}/requesters", a.listRequesters)
	mux.HandleFunc("POST /users/{id}/friend-requests", a.requestFriend)
	mux.HandleFunc("POST /users/{id}/friend-requests/{friendID}/accept", a.acceptFriend)
	mux.HandleFunc("POST /users/{id}/friend-requests/{friendID}/reject", a.rejectFriend)

	mux.HandleFunc("POST /users/{id}/chirps", a.addChirp)
	mux.HandleFunc("GET /timeline/live", a.liveTimeline)
	mux.HandleFunc("GET /timeline/history", a.historicalTimeline)

	mux.HandleFunc("POST /chirps/{uuid}/likes", a.likeChirp)
	mux.HandleFunc("DELETE /chirps/{uuid}/likes/{likerID}", a.unlikeChirp)
	mux.HandleFunc("GET /chirps/{uuid}/likes", a.listLikes)

	return mux
}

type userPayload struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Friends []string `json:"friends,omitempty"`
}

type chirpPayload struct {
	AuthorID  string    `json:"author_id"`
	UUID      string    `json:"uuid,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	LikeCount int       `json:"like_count"`
}

type friendPayload struct {
	FriendID string `json:"friend_id"`
}

type likePayload struct {
	LikerID string `json:"liker_id"`
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	user := frienddomain.User{ID: payload.ID, Name: payload.Name, Friends: payload.Friends}
	if err := a.Friends.CreateUser(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userPayload{ID: user.ID, Name: user.Name})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.Friends.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userPayload{ID: user.ID, Name: user.Name, Friends: user.Friends})
}

func (a *API) listFollowers(w http.ResponseWriter, r *http.Request) {
	followers, err := a.Friends.Followers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"followers": followers})
}

func (a *API) listRequesters(w http.ResponseWriter, r *http.Request) {
	requesters, err := a.Friends.Requesters(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"requesters": requesters})
}

func (a *API) requestFriend(w http.ResponseWriter, r *http.Request) {
	var payload friendPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := a.Friends.RequestAddFriend(r.Context(), r.PathValue("id"), payload.FriendID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) acceptFriend(w http.ResponseWriter, r *http.Request) {
	if err := a.Friends.AcceptAddFriend(r.Context(), r.PathValue("id"), r.PathValue("friendID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) rejectFriend(w http.ResponseWriter, r *http.Request) {
	if err := a.Friends.RejectAddFriend(r.Context(), r.PathValue("id"), r.PathValue("friendID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addChirp(w http.ResponseWriter, r *http.Request) {
	var payload chirpPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	chirp := chirpdomain.Chirp{
		AuthorID:  payload.AuthorID,
		UUID:      payload.UUID,
		Message:   payload.Message,
		Timestamp: payload.Timestamp,
	}
	stored, err := a.Timeline.AddChirp(r.Context(), r.PathValue("id"), chirp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChirpPayload(stored))
}

func (a *API) liveTimeline(w http.ResponseWriter, r *http.Request) {
	userIDs := r.URL.Query()["user"]
	streamItems(w, r, a.Timeline.LiveChirps(r.Context(), userIDs))
}

func (a *API) historicalTimeline(w http.ResponseWriter, r *http.Request) {
	userIDs := r.URL.Query()["user"]
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
			return
		}
		since = parsed
	}
	streamItems(w, r, a.Timeline.HistoricalChirps(r.Context(), userIDs, since))
}

func (a *API) likeChirp(w http.ResponseWriter, r *http.Request) {
	var payload likePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := a.Likes.Like(r.Context(), r.PathValue("uuid"), payload.LikerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) unlikeChirp(w http.ResponseWriter, r *http.Request) {
	if err := a.Likes.Unlike(r.Context(), r.PathValue("uuid"), r.PathValue("likerID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listLikes(w http.ResponseWriter, r *http.Request) {
	likers, err := a.Likes.GetLikes(r.Context(), r.PathValue("uuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"likers": likers, "count": len(likers)})
}

func toChirpPayload(chirp chirpdomain.Chirp) chirpPayload {
	return chirpPayload{
		AuthorID:  chirp.AuthorID,
		UUID:      chirp.UUID,
		Message:   chirp.Message,
		Timestamp: chirp.Timestamp,
		LikeCount: chirp.LikeCount,
	}
}

// streamItems writes the timeline as newline-delimited JSON, flushing per
// item so live feeds reach the client promptly.
func streamItems(w http.ResponseWriter, r *http.Request, items <-chan stream.Item) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for item := range items {
		if item.Err != nil {
			if r.Context().Err() == nil {
				log.Printf("timeline stream aborted: %v", item.Err)
			}
			return
		}
		if err := enc.Encode(toChirpPayload(item.Chirp)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var domainErr *platformerrors.Error
	if !errors.As(err, &domainErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, httpStatus(domainErr.Code), map[string]string{
		"code":  string(domainErr.Code),
		"error": domainErr.Message,
	})
}

func httpStatus(code platformerrors.Code) int {
	switch code.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
