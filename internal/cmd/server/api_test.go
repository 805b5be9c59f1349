package server

import (
	"bufio"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chirpapp "github.com/louisbranch/chirper/internal/services/chirp/app"
	"github.com/louisbranch/chirper/internal/services/chirp/pubsub"
	chirpsqlite "github.com/louisbranch/chirper/internal/services/chirp/storage/sqlite"
	friendapp "github.com/louisbranch/chirper/internal/services/friend/app"
	friendsqlite "github.com/louisbranch/chirper/internal/services/friend/storage/sqlite"
	likeapp "github.com/louisbranch/chirper/internal/services/like/app"
	likesqlite "github.com/louisbranch/chirper/internal/services/like/storage/sqlite"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	dir := t.TempDir()

	friendEvents, err := friendsqlite.OpenEvents(filepath.Join(dir, "friend-events.db"))
	if err != nil {
		t.Fatalf("open friend events: %v", err)
	}
	t.Cleanup(func() { _ = friendEvents.Close() })

	chirps, err := chirpsqlite.Open(filepath.Join(dir, "chirps.db"))
	if err != nil {
		t.Fatalf("open chirps: %v", err)
	}
	t.Cleanup(func() { _ = chirps.Close() })

	likeEvents, err := likesqlite.Open(filepath.Join(dir, "likes.db"))
	if err != nil {
		t.Fatalf("open likes: %v", err)
	}
	t.Cleanup(func() { _ = likeEvents.Close() })

	friends, err := friendapp.New(friendEvents, friendEvents, nil)
	if err != nil {
		t.Fatalf("friend service: %v", err)
	}
	t.Cleanup(friends.Close)

	likes, err := likeapp.New(likeEvents)
	if err != nil {
		t.Fatalf("like service: %v", err)
	}
	t.Cleanup(likes.Close)

	timeline, err := chirpapp.New(chirps, pubsub.NewMemoryBroker(), likesLookup{likes: likes})
	if err != nil {
		t.Fatalf("timeline service: %v", err)
	}

	return &API{Friends: friends, Timeline: timeline, Likes: likes}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestUserLifecycleOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/users", `{"id":"alice","name":"Alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/users", `{"id":"alice","name":"Alice"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/users/alice/friend-requests", `{"friend_id":"bob"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("request status = %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, handler, http.MethodPost, "/users/alice/friend-requests/bob/accept", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("accept status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet, "/users/alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get user status = %d: %s", rec.Code, rec.Body)
	}
	var user struct {
		Friends []string `json:"friends"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if len(user.Friends) != 1 || user.Friends[0] != "bob" {
		t.Fatalf("unexpected friends: %v", user.Friends)
	}

	rec = doJSON(t, handler, http.MethodGet, "/users/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing user status = %d, want 404", rec.Code)
	}
}

func TestChirpAndLikesOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/users/alice/chirps", `{"author_id":"alice","uuid":"c1","message":"hello"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add chirp status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/users/alice/chirps", `{"author_id":"mallory","message":"spoof"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched author status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/chirps/c1/likes", `{"liker_id":"bob"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("like status = %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, handler, http.MethodGet, "/chirps/c1/likes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list likes status = %d: %s", rec.Code, rec.Body)
	}
	var likes struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &likes); err != nil {
		t.Fatalf("decode likes: %v", err)
	}
	if likes.Count != 1 {
		t.Fatalf("count = %d, want 1", likes.Count)
	}
}

func TestHistoricalTimelineOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	doJSON(t, handler, http.MethodPost, "/users/alice/chirps", `{"author_id":"alice","uuid":"c1","message":"one","timestamp":"2026-05-01T10:00:00Z"}`)
	doJSON(t, handler, http.MethodPost, "/users/alice/chirps", `{"author_id":"alice","uuid":"c2","message":"two","timestamp":"2026-05-01T11:00:00Z"}`)

	rec := doJSON(t, handler, http.MethodGet, "/timeline/history?user=alice&since=2026-05-01T10%3A30%3A00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d: %s", rec.Code, rec.Body)
	}
	var uuids []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var chirp struct {
			UUID string `json:"uuid"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &chirp); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		uuids = append(uuids, chirp.UUID)
	}
	if len(uuids) != 1 || uuids[0] != "c2" {
		t.Fatalf("unexpected uuids: %v", uuids)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", ":9999"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("addr = %q, want :9999", cfg.Addr)
	}
	if cfg.ChirpsDBPath == "" || cfg.FriendEventsDBPath == "" {
		t.Fatalf("db path defaults missing: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown timeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}
