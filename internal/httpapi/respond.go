package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/avdelag1/swipess/internal/feed"
	"github.com/avdelag1/swipess/internal/preference"
	"github.com/avdelag1/swipess/internal/session"
	"github.com/avdelag1/swipess/internal/swipe"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[httpapi] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// httpStatus maps pipeline errors to response codes. Unknown errors are
// internal; their details stay in the log, not the response.
func httpStatus(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, session.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, feed.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, preference.ErrInvertedRange),
		errors.Is(err, swipe.ErrInvalidDirection),
		errors.Is(err, swipe.ErrInvalidTargetType),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors get a
// generic message.
func respondError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[httpapi] internal error: %v", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
