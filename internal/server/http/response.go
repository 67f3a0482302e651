package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// Response types for JSON serialization. Papers, profiles, feedback and
// folders serialize through their domain JSON tags.

type feedResponse struct {
	Papers  []*domain.Paper `json:"papers"`
	Count   int             `json:"count"`
	Message string          `json:"message,omitempty"`
}

type loadMoreResponse struct {
	Papers          []*domain.Paper `json:"papers"`
	Count           int             `json:"count"`
	Message         string          `json:"message,omitempty"`
	ServedFromCache bool            `json:"served_from_cache"`
}

type listFoldersResponse struct {
	Folders []*domain.Folder `json:"folders"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked to
// clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrNoResults):
		writeError(w, http.StatusNotFound, "no results")
	case errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrMalformedRecord):
		writeError(w, http.StatusBadGateway, "upstream source unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
