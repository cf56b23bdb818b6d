package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bitespeed-identity/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorResponse{Error: msg})
}

// respondError maps service error kinds onto HTTP statuses. Only unexpected
// failures are logged; the service has already logged storage context.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "No matching contact")
	default:
		logger.ErrorContext(r.Context(), "error processing request", "path", r.URL.Path, "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}
