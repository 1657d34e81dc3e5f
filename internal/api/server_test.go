package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/internal/sheets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSyncer struct {
	lastCollection string
	result         models.SyncResult
	fullErr        error
}

func (s *stubSyncer) SyncRecord(_ context.Context, collection, _, _ string) models.SyncResult {
	s.lastCollection = collection
	return s.result
}

func (s *stubSyncer) FullSync(_ context.Context, collection, sheet string) (models.FullSyncResult, error) {
	s.lastCollection = collection
	if s.fullErr != nil {
		return models.FullSyncResult{}, s.fullErr
	}
	if sheet == "" {
		sheet = "Finance"
	}
	return models.FullSyncResult{Sheet: sheet, Count: 7}, nil
}

type stubPuller struct{ sheet string }

func (s *stubPuller) PullFromSheet(_ context.Context, sheet, _ string) (models.PullResult, error) {
	s.sheet = sheet
	return models.PullResult{Updated: 2, Skipped: 1}, nil
}

type stubReconciler struct{ err error }

func (s *stubReconciler) UpdateFormFields(_ context.Context, id string, fields models.FormFields) (*models.Form, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Form{Title: id, Fields: fields}, nil
}

func (s *stubReconciler) ReconcileAll(context.Context) (models.ReconcileResult, error) {
	return models.ReconcileResult{FormsScanned: 3, UsersUpdated: 2}, nil
}

type stubDue struct{}

func (stubDue) DuePayments(context.Context) ([]models.DuePaymentRecord, error) {
	return nil, nil
}

func (stubDue) PushDuePayments(_ context.Context, sheet string) (models.DueReport, error) {
	return models.DueReport{Sheet: sheet, Pushed: 0}, nil
}

type stubRecords struct {
	collection string
	fields     map[string]any
	err        error
}

func (s *stubRecords) UpdateRecord(_ context.Context, collection, _ string, fields map[string]any) error {
	s.collection = collection
	s.fields = fields
	return s.err
}

func newTestServer(deps Deps) http.Handler {
	s := NewServer(":0", []string{"http://localhost:3000"}, deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s.http.Handler
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(Deps{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPushReturnsCount(t *testing.T) {
	syncer := &stubSyncer{}
	h := newTestServer(Deps{Syncer: syncer})

	rec := do(t, h, http.MethodPost, "/admin/sheets/push", `{"collection":"payments"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var res models.FullSyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 7, res.Count)
	assert.Equal(t, "payments", syncer.lastCollection)
}

func TestPushRejectsUnknownCollection(t *testing.T) {
	rec := do(t, newTestServer(Deps{Syncer: &stubSyncer{}}), http.MethodPost, "/admin/sheets/push", `{"collection":"sessions"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPushNotConfigured(t *testing.T) {
	h := newTestServer(Deps{Syncer: &stubSyncer{fullErr: sheets.ErrNotConfigured}})

	rec := do(t, h, http.MethodPost, "/admin/sheets/push", `{"collection":"users"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPullPassesSheet(t *testing.T) {
	puller := &stubPuller{}
	h := newTestServer(Deps{Puller: puller})

	rec := do(t, h, http.MethodPost, "/admin/sheets/pull", `{"collection":"users","sheet":"People"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "People", puller.sheet)
	assert.Contains(t, rec.Body.String(), `"updatedCount":2`)
}

func TestSyncRecordFailureIsBadGateway(t *testing.T) {
	h := newTestServer(Deps{Syncer: &stubSyncer{result: models.SyncFailure("sheet update failed")}})

	rec := do(t, h, http.MethodPost, "/admin/sync/payments/64b7f0c2a1b2c3d4e5f60702", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "sheet update failed")
}

func TestUpdateFormValidationIs422(t *testing.T) {
	h := newTestServer(Deps{Reconciler: &stubReconciler{
		err: &models.ValidationError{Field: "playerFields", Reason: "at least one player is required"},
	}})

	rec := do(t, h, http.MethodPatch, "/admin/forms/64b7f0c2a1b2c3d4e5f60703", `{"playerFields":[]}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "playerFields", body.Field)
}

func TestUpdateFormSuccess(t *testing.T) {
	h := newTestServer(Deps{Reconciler: &stubReconciler{}})

	rec := do(t, h, http.MethodPatch, "/admin/forms/64b7f0c2a1b2c3d4e5f60703", `{"playerFields":[{"name":"A"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var form models.Form
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.Equal(t, 1, form.PlayerCount())
}

func TestUpdateRecordRoutesCollection(t *testing.T) {
	records := &stubRecords{}
	h := newTestServer(Deps{Records: records})

	rec := do(t, h, http.MethodPatch, "/admin/users/64b7f0c2a1b2c3d4e5f60701", `{"emailVerified":true}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, models.CollectionUsers, records.collection)
	assert.Equal(t, true, records.fields["emailVerified"])
}

func TestUpdateRecordErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrInvalidID, http.StatusBadRequest},
		{&models.ValidationError{Field: "x", Reason: "no"}, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestServer(Deps{Records: &stubRecords{err: tt.err}})
			rec := do(t, h, http.MethodPatch, "/admin/payments/64b7f0c2a1b2c3d4e5f60702", `{"status":"verified"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	rec := do(t, newTestServer(Deps{Records: &stubRecords{}}), http.MethodPatch, "/admin/payments/x", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuePaymentsEmptyIsArray(t *testing.T) {
	rec := do(t, newTestServer(Deps{Due: stubDue{}}), http.MethodGet, "/admin/due-payments", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPushDuePaymentsWithoutBody(t *testing.T) {
	rec := do(t, newTestServer(Deps{Due: stubDue{}}), http.MethodPost, "/admin/due-payments/push", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeadLettersWithoutStore(t *testing.T) {
	rec := do(t, newTestServer(Deps{}), http.MethodGet, "/admin/dead-letters", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcile(t *testing.T) {
	rec := do(t, newTestServer(Deps{Reconciler: &stubReconciler{}}), http.MethodPost, "/admin/reconcile/players", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"usersUpdated":2`)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(Deps{})
	req := httptest.NewRequest(http.MethodOptions, "/admin/due-payments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
