package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bitespeed-identity/internal/models"
)

// ContactsHandler handles contact sightings posted to /contacts
type ContactsHandler struct {
	service Reconciler
	logger  *slog.Logger
}

func NewContactsHandler(service Reconciler, logger *slog.Logger) *ContactsHandler {
	return &ContactsHandler{service: service, logger: logger}
}

// Handle reconciles one (email, phoneNumber) sighting
func (h *ContactsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req models.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.DebugContext(r.Context(), "error decoding request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON")
		return
	}

	contact, err := h.service.Reconcile(r.Context(), req.Email, req.PhoneNumber)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, models.ReconcileResponse{Message: "Contact created", Contact: contact})
}
