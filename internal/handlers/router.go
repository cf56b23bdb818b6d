package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the contact endpoints onto a gorilla/mux router. A nil
// metrics handler leaves /metrics unregistered.
func NewRouter(service Reconciler, metricsHandler http.Handler, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	identifyHandler := NewIdentifyHandler(service, logger)
	contactsHandler := NewContactsHandler(service, logger)

	router := mux.NewRouter()
	router.Use(RequestIDMiddleware, AccessLog(logger))

	router.HandleFunc("/contacts", contactsHandler.Handle).Methods(http.MethodPost)
	router.HandleFunc("/identify", identifyHandler.Handle).Methods(http.MethodPost)
	router.HandleFunc("/identify", identifyHandler.HandleQuery).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	return router
}
