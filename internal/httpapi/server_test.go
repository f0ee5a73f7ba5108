package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avdelag1/swipess/internal/feed"
	"github.com/avdelag1/swipess/internal/listing"
	"github.com/avdelag1/swipess/internal/preference"
	"github.com/avdelag1/swipess/internal/ratelimit"
	"github.com/avdelag1/swipess/internal/scoring"
	"github.com/avdelag1/swipess/internal/seen"
	"github.com/avdelag1/swipess/internal/session"
	"github.com/avdelag1/swipess/internal/swipe"
)

type fakeResolver struct {
	byToken map[string]string
}

func (f *fakeResolver) UserID(token string) (string, error) {
	if id, ok := f.byToken[token]; ok {
		return id, nil
	}
	return "", errUnauthorized
}

var errUnauthorized = &tokenError{}

type tokenError struct{}

func (e *tokenError) Error() string { return "bad token" }

type fakeFeed struct {
	batch feed.Batch

	lastSwipe struct {
		userID, viewType, targetID, targetType, direction string
	}
}

func (f *fakeFeed) NextBatch(_ context.Context, userID, _ string, _ time.Time, _ int) (feed.Batch, error) {
	if userID == "" {
		return feed.Batch{}, nil
	}
	return f.batch, nil
}

func (f *fakeFeed) RecordSwipe(_ context.Context, userID, viewType, targetID, targetType, direction string) error {
	if userID == "" {
		return session.ErrUnauthenticated
	}
	if direction != swipe.DirectionLeft && direction != swipe.DirectionRight {
		return swipe.ErrInvalidDirection
	}
	f.lastSwipe.userID = userID
	f.lastSwipe.viewType = viewType
	f.lastSwipe.targetID = targetID
	f.lastSwipe.targetType = targetType
	f.lastSwipe.direction = direction
	return nil
}

func (f *fakeFeed) RecordView(_ context.Context, userID, _, _ string) error {
	if userID == "" {
		return session.ErrUnauthenticated
	}
	return nil
}

func (f *fakeFeed) Likes(_ context.Context, userID string, _ int) ([]swipe.Decision, error) {
	if userID == "" {
		return nil, nil
	}
	return []swipe.Decision{{UserID: userID, TargetID: "l1", Direction: swipe.DirectionRight}}, nil
}

type fakePrefStore struct {
	byUser map[string]preference.Preferences
}

func (f *fakePrefStore) Get(_ context.Context, userID string) (preference.Preferences, error) {
	return f.byUser[userID], nil
}

func (f *fakePrefStore) Put(_ context.Context, p preference.Preferences) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	f.byUser[p.UserID] = p
	return nil
}

type fakeSessions struct {
	modes map[string]string
}

func (f *fakeSessions) Touch(context.Context, string) error { return nil }

func (f *fakeSessions) Mode(_ context.Context, userID string) (string, error) {
	if m, ok := f.modes[userID]; ok {
		return m, nil
	}
	return seen.ViewClient, nil
}

func (f *fakeSessions) SetMode(_ context.Context, userID, mode string) error {
	if mode != seen.ViewClient && mode != seen.ViewOwner {
		return &tokenError{}
	}
	f.modes[userID] = mode
	return nil
}

type denyGate struct{}

func (denyGate) Allow(context.Context, string, ratelimit.Rule) (bool, error) { return false, nil }

func newTestServer(t *testing.T, feedSvc *fakeFeed, gate Gate) (*Server, *fakePrefStore, *fakeSessions) {
	t.Helper()
	prefs := &fakePrefStore{byUser: make(map[string]preference.Preferences)}
	sessions := &fakeSessions{modes: make(map[string]string)}
	resolver := &fakeResolver{byToken: map[string]string{"tok-alice": "alice"}}
	srv := NewServer(DefaultConfig(), resolver, sessions, feedSvc, prefs, nil, gate)
	return srv, prefs, sessions
}

func doRequest(srv *Server, method, path, token string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected ok status, got %v", resp["status"])
	}
}

func TestFeed_UnauthenticatedGetsEmptyBatch(t *testing.T) {
	feedSvc := &fakeFeed{batch: feed.Batch{Items: []scoring.Ranked{{Listing: listing.Listing{ID: "l1"}}}}}
	srv, _, _ := newTestServer(t, feedSvc, nil)

	rec := doRequest(srv, http.MethodGet, "/feed", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unauthenticated read, got %d", rec.Code)
	}

	var batch feed.Batch
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batch.Items) != 0 {
		t.Errorf("expected empty batch, got %d items", len(batch.Items))
	}
}

func TestFeed_AuthenticatedGetsBatch(t *testing.T) {
	feedSvc := &fakeFeed{batch: feed.Batch{Items: []scoring.Ranked{{Listing: listing.Listing{ID: "l1"}}}, HasMore: true}}
	srv, _, _ := newTestServer(t, feedSvc, nil)

	rec := doRequest(srv, http.MethodGet, "/feed?page_size=5", "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var batch feed.Batch
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batch.Items) != 1 || !batch.HasMore {
		t.Errorf("unexpected batch %+v", batch)
	}
}

func TestFeed_BadCursorRejected(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodGet, "/feed?cursor=yesterday", "tok-alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad cursor, got %d", rec.Code)
	}
}

func TestFeed_RateLimited(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, denyGate{})

	rec := doRequest(srv, http.MethodGet, "/feed", "tok-alice", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestSwipe_Unauthenticated(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPost, "/swipes", "",
		`{"target_id":"l1","target_type":"listing","direction":"right"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestSwipe_RecordsWithSessionMode(t *testing.T) {
	feedSvc := &fakeFeed{}
	srv, _, sessions := newTestServer(t, feedSvc, nil)
	sessions.modes["alice"] = seen.ViewOwner

	rec := doRequest(srv, http.MethodPost, "/swipes", "tok-alice",
		`{"target_id":"p7","target_type":"profile","direction":"right"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	got := feedSvc.lastSwipe
	if got.userID != "alice" || got.viewType != seen.ViewOwner ||
		got.targetID != "p7" || got.targetType != "profile" || got.direction != "right" {
		t.Errorf("unexpected swipe call %+v", got)
	}
}

func TestSwipe_InvalidDirectionIs400(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPost, "/swipes", "tok-alice",
		`{"target_id":"l1","target_type":"listing","direction":"up"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSwipe_MissingTargetIs400(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPost, "/swipes", "tok-alice",
		`{"direction":"right"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestLikes_UnauthenticatedGetsEmptyList(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodGet, "/likes", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty JSON array, got %s", body)
	}
}

func TestPreferences_PutBindsToCaller(t *testing.T) {
	srv, prefs, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPut, "/preferences", "tok-alice",
		`{"user_id":"mallory","min_price":1000,"max_price":2000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, ok := prefs.byUser["mallory"]; ok {
		t.Error("preferences stored under attacker-chosen user_id")
	}
	stored, ok := prefs.byUser["alice"]
	if !ok {
		t.Fatal("preferences not stored under the caller")
	}
	if stored.MinPrice == nil || *stored.MinPrice != 1000 {
		t.Errorf("unexpected stored preferences %+v", stored)
	}
}

func TestPreferences_InvertedRangeIs400(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPut, "/preferences", "tok-alice",
		`{"min_price":2000,"max_price":1000}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestPreferences_PutRequiresAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPut, "/preferences", "",
		`{"min_price":1000}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMode_RoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPut, "/mode", "tok-alice", `{"mode":"owner"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodGet, "/mode", "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp modeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != seen.ViewOwner {
		t.Errorf("expected owner mode, got %q", resp.Mode)
	}
}

func TestMode_InvalidValueIs400(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodPut, "/mode", "tok-alice", `{"mode":"landlord"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestWS_RequiresAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeFeed{}, nil)

	rec := doRequest(srv, http.MethodGet, "/ws", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

