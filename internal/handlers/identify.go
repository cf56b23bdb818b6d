package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"bitespeed-identity/internal/models"
)

// Reconciler is the service surface the HTTP layer needs
type Reconciler interface {
	Reconcile(ctx context.Context, email, phoneNumber string) (*models.Contact, error)
	Identify(ctx context.Context, email, phoneNumber *string) (*models.ContactResponse, error)
}

// IdentifyHandler handles the /identify endpoint
type IdentifyHandler struct {
	service Reconciler
	logger  *slog.Logger
}

// NewIdentifyHandler creates a new identify handler
func NewIdentifyHandler(service Reconciler, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{service: service, logger: logger}
}

// Handle processes a JSON identify request
func (h *IdentifyHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req models.IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.DebugContext(r.Context(), "error decoding request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.identify(w, r, req)
}

// HandleQuery processes an identify lookup passed as query parameters
func (h *IdentifyHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.identify(w, r, models.IdentifyRequest{
		Email:       models.StringPtr(q.Get("email")),
		PhoneNumber: models.StringPtr(q.Get("phoneNumber")),
	})
}

func (h *IdentifyHandler) identify(w http.ResponseWriter, r *http.Request, req models.IdentifyRequest) {
	view, err := h.service.Identify(r.Context(), req.Email, req.PhoneNumber)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, models.IdentifyResponse{Contact: *view})
}
