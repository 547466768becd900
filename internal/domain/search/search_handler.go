package search

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/FACorreiaa/loci-places-api/internal/types"
)

// Handler exposes the orchestrator over plain JSON HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// SearchNearby handles POST /v1/places/search.
func (h *Handler) SearchNearby(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, &types.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	response, err := h.service.SearchNearby(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, response)
}

// GetPlaceDetails handles GET /v1/places/{id}.
func (h *Handler) GetPlaceDetails(w http.ResponseWriter, r *http.Request) {
	placeID := r.PathValue("id")
	if placeID == "" {
		h.writeError(w, r, &types.ValidationError{Field: "id", Reason: "missing place id"})
		return
	}

	place, err := h.service.GetPlaceDetails(r.Context(), placeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, place)
}

// StaleLocations handles GET /v1/places/stale. It serves the external
// refresh collaborator, not end users.
func (h *Handler) StaleLocations(w http.ResponseWriter, r *http.Request) {
	olderThanHours := 24
	if raw := r.URL.Query().Get("older_than_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, r, &types.ValidationError{Field: "older_than_hours", Reason: "must be a positive integer"})
			return
		}
		olderThanHours = parsed
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, r, &types.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = parsed
	}
	source := r.URL.Query().Get("source")

	places, err := h.service.StaleLocations(r.Context(), time.Duration(olderThanHours)*time.Hour, source, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if places == nil {
		places = []types.Place{}
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"places": places})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var validationErr *types.ValidationError
	var upstreamErr *types.UpstreamError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WarnContext(r.Context(), "failed to encode response", slog.Any("error", err))
	}
}
