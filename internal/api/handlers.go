package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
)

const maxBodyBytes = 1 << 20

type sheetRequest struct {
	Collection string `json:"collection"`
	Sheet      string `json:"sheet,omitempty"`
}

type sheetOnlyRequest struct {
	Sheet string `json:"sheet,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req sheetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !models.KnownCollection(req.Collection) {
		writeError(w, http.StatusBadRequest, "unknown collection "+strconv.Quote(req.Collection))
		return
	}

	res, err := s.deps.Syncer.FullSync(r.Context(), req.Collection, req.Sheet)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req sheetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !models.KnownCollection(req.Collection) {
		writeError(w, http.StatusBadRequest, "unknown collection "+strconv.Quote(req.Collection))
		return
	}

	res, err := s.deps.Puller.PullFromSheet(r.Context(), req.Sheet, req.Collection)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSyncRecord(w http.ResponseWriter, r *http.Request) {
	res := s.deps.Syncer.SyncRecord(r.Context(), r.PathValue("collection"), r.PathValue("id"), r.URL.Query().Get("sheet"))
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Reconciler.ReconcileAll(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDuePayments(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Due.DuePayments(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []models.DuePaymentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handlePushDuePayments(w http.ResponseWriter, r *http.Request) {
	var req sheetOnlyRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	report, err := s.deps.Due.PushDuePayments(r.Context(), req.Sheet)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	var fields models.FormFields
	if !decodeBody(w, r, &fields) {
		return
	}
	form, err := s.deps.Reconciler.UpdateFormFields(r.Context(), r.PathValue("id"), fields)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleUpdateRecord(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if !decodeBody(w, r, &fields) {
			return
		}
		if err := s.deps.Records.UpdateRecord(r.Context(), collection, r.PathValue("id"), fields); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeadLetters == nil {
		writeError(w, http.StatusNotFound, "dead letter store is not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	letters, err := s.deps.DeadLetters.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if letters == nil {
		letters = []models.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, letters)
}
