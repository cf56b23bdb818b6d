package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"bitespeed-identity/internal/service"
)

func TestWriteJSONLogsEncodeFailuresToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rec := httptest.NewRecorder()
	writeJSON(rec, logger, http.StatusOK, map[string]any{"unencodable": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "error encoding response")
}

func TestRespondErrorLogsOnlyUnexpectedFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	req := httptest.NewRequest(http.MethodPost, "/contacts", nil)

	rec := httptest.NewRecorder()
	respondError(rec, req, logger, service.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, buf.String())

	rec = httptest.NewRecorder()
	respondError(rec, req, logger, errors.Join(service.ErrStorageFailure, errors.New("disk gone")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "disk gone")
	assert.NotContains(t, rec.Body.String(), "disk gone")
}
