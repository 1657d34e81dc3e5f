package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/internal/sheets"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps the error taxonomy onto HTTP statuses
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, models.ErrInvalidID), errors.Is(err, models.ErrUnsupportedCollection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sheets.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("Admin request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
