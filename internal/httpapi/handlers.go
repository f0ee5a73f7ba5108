package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avdelag1/swipess/internal/preference"
	"github.com/avdelag1/swipess/internal/ratelimit"
	"github.com/avdelag1/swipess/internal/seen"
	"github.com/avdelag1/swipess/internal/session"
	"github.com/avdelag1/swipess/internal/swipe"
)

// userID resolves the caller from the Authorization header. A missing or
// invalid bearer token yields the empty user: reads then serve empty results
// and writes fail with 401 further down the pipeline.
func (s *Server) userID(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return ""
	}
	id, err := s.verifier.UserID(token)
	if err != nil {
		return ""
	}
	return id
}

// viewType returns the caller's active browsing mode. Clients browse
// listings, owners browse client profiles; the session store remembers which
// side of the marketplace the user last picked.
func (s *Server) viewType(r *http.Request, userID string) string {
	if s.sessions == nil || userID == "" {
		return seen.ViewClient
	}
	mode, err := s.sessions.Mode(r.Context(), userID)
	if err != nil {
		return seen.ViewClient
	}
	return mode
}

// touch refreshes the caller's session TTL, best effort.
func (s *Server) touch(r *http.Request, userID string) {
	if s.sessions == nil || userID == "" {
		return
	}
	if err := s.sessions.Touch(r.Context(), userID); err != nil {
		log.Printf("[httpapi] session touch for %s: %v", userID, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"push_connections"`
	}{Status: "ok"}
	if s.hub != nil {
		resp.Connections = s.hub.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	s.touch(r, userID)

	if s.gate != nil && userID != "" {
		if allowed, err := s.gate.Allow(r.Context(), userID, ratelimit.RuleFeed); err == nil && !allowed {
			writeError(w, http.StatusTooManyRequests, "feed refresh limit reached")
			return
		}
	}

	var cursor time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cursor must be RFC 3339")
			return
		}
		cursor = parsed
	}

	pageSize := 0
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page_size must be an integer")
			return
		}
		pageSize = n
	}

	batch, err := s.feed.NextBatch(r.Context(), userID, s.viewType(r, userID), cursor, pageSize)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

type swipeRequest struct {
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
	Direction  string `json:"direction"`
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	s.touch(r, userID)

	var req swipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}

	err := s.feed.RecordSwipe(r.Context(), userID, s.viewType(r, userID), req.TargetID, req.TargetType, req.Direction)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

type viewRequest struct {
	CandidateID string `json:"candidate_id"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	s.touch(r, userID)

	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CandidateID == "" {
		writeError(w, http.StatusBadRequest, "candidate_id is required")
		return
	}

	if err := s.feed.RecordView(r.Context(), userID, s.viewType(r, userID), req.CandidateID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLikes(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	s.touch(r, userID)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	liked, err := s.feed.Likes(r.Context(), userID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if liked == nil {
		liked = []swipe.Decision{}
	}
	writeJSON(w, http.StatusOK, liked)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	if userID == "" {
		writeJSON(w, http.StatusOK, preference.Preferences{})
		return
	}
	s.touch(r, userID)

	prefs, err := s.prefs.Get(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	if userID == "" {
		respondError(w, session.ErrUnauthenticated)
		return
	}
	s.touch(r, userID)

	var prefs preference.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// The body never picks whose preferences change.
	prefs.UserID = userID

	if err := s.prefs.Put(r.Context(), prefs); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type modeResponse struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	if userID == "" {
		respondError(w, session.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, modeResponse{Mode: s.viewType(r, userID)})
}

func (s *Server) handlePutMode(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	if userID == "" {
		respondError(w, session.ErrUnauthenticated)
		return
	}
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	var req modeResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.sessions.SetMode(r.Context(), userID, req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	if userID == "" {
		// Browsers cannot set Authorization on WebSocket upgrades, so the
		// token is also accepted as a query parameter here.
		if token := r.URL.Query().Get("token"); token != "" {
			if id, err := s.verifier.UserID(token); err == nil {
				userID = id
			}
		}
	}
	if userID == "" {
		respondError(w, session.ErrUnauthenticated)
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "push unavailable")
		return
	}
	s.hub.HandleUpgrade(w, r, userID)
}
