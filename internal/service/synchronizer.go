package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/mapper"
	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/internal/sheets"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncService pushes store records into the ledger sheet, one record at a
// time (SyncRecord) or a whole collection at once (FullSync)
type SyncService struct {
	store  Store
	sheets SheetAPI
	logger *slog.Logger
	locks  keyLock
}

func NewSyncService(store Store, api SheetAPI, l *slog.Logger) *SyncService {
	return &SyncService{
		store:  store,
		sheets: api,
		logger: l,
	}
}

// SyncError carries a failed SyncResult through the dispatcher. Permanent
// failures (bad id, missing record) are not worth replaying
type SyncError struct {
	Collection string
	RecordID   string
	Message    string
	Permanent  bool
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s/%s: %s", e.Collection, e.RecordID, e.Message)
}

// IsPermanent reports whether err is a sync failure that a retry cannot fix
func IsPermanent(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Permanent
}

// SyncRecord finds the record's row by key and replaces it, or appends a new
// row when the key is absent. It never returns an error: every failure is a
// SyncResult with Success=false so callers can log and continue
func (s *SyncService) SyncRecord(ctx context.Context, collection, recordID, sheetName string) models.SyncResult {
	res, _ := s.syncRecord(ctx, collection, recordID, sheetName)
	return res
}

// Run adapts SyncRecord to the dispatcher's RunFunc
func (s *SyncService) Run(ctx context.Context, req models.SyncRequest) error {
	res, permanent := s.syncRecord(ctx, req.Collection, req.RecordID, req.Sheet)
	if res.Success {
		return nil
	}
	return &SyncError{Collection: req.Collection, RecordID: req.RecordID, Message: res.Message, Permanent: permanent}
}

func (s *SyncService) syncRecord(ctx context.Context, collection, recordID, sheetName string) (models.SyncResult, bool) {
	start := time.Now()
	l := s.logger.With("collection", collection, "record_id", recordID)

	res, permanent := s.push(ctx, l, collection, recordID, sheetName)

	metrics.SyncDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	if !res.Success {
		metrics.SyncOperations.WithLabelValues(collection, "failed").Inc()
		l.Warn("Ledger sync failed", "reason", res.Message, "permanent", permanent)
		return res, permanent
	}

	metrics.SyncOperations.WithLabelValues(collection, res.Action).Inc()
	l.Info("Ledger row synced", "action", res.Action, "row", res.Row, "duration_ms", time.Since(start).Milliseconds())
	return res, false
}

func (s *SyncService) push(ctx context.Context, l *slog.Logger, collection, recordID, sheetName string) (models.SyncResult, bool) {
	layout, ok := mapper.LayoutFor(collection)
	if !ok {
		return models.SyncFailure(fmt.Sprintf("unsupported collection %q", collection)), true
	}

	id, err := models.ParseID(recordID)
	if err != nil {
		return models.SyncFailure(err.Error()), true
	}

	row, err := s.formatRecord(ctx, collection, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.SyncFailure(fmt.Sprintf("%s record %s not found", collection, recordID)), true
	}
	if err != nil {
		return models.SyncFailure(fmt.Sprintf("load record: %v", err)), false
	}

	key := layout.RowKey(row)
	if key == "" {
		return models.SyncFailure("record has no value for key column " + layout.KeyHeader), true
	}

	sheet := layout.Sheet(sheetName)

	// Read-then-append is not atomic on the sheet; serialize it per record
	// within this process
	unlock := s.locks.Lock(sheet + "\x00" + key)
	defer unlock()

	header, err := s.sheets.Get(ctx, sheets.Range(sheet, "1:1"))
	if err != nil {
		return sheetFailure("read header", err), false
	}

	if len(header) == 0 || isBlankRow(header[0]) {
		// Fresh tab: header and row go out in the single permitted write
		values := [][]any{mapper.HeaderRow(layout.Headers), row}
		if err := s.sheets.Append(ctx, sheets.Range(sheet, "A1"), values); err != nil {
			return sheetFailure("append", err), false
		}
		l.Debug("Initialized empty ledger tab", "sheet", sheet)
		return models.SyncResult{Success: true, Message: "appended new row", Action: models.SyncActionAppended, Row: 2}, false
	}

	col := mapper.ColumnLetter(layout.KeyIndex(header[0]))
	keys, err := s.sheets.Get(ctx, sheets.Range(sheet, col+":"+col))
	if err != nil {
		return sheetFailure("read key column", err), false
	}

	if rowNum := findKeyRow(layout, keys, key); rowNum > 0 {
		rng := sheets.Range(sheet, fmt.Sprintf("A%d:%s%d", rowNum, layout.LastColumn(), rowNum))
		if err := s.sheets.Update(ctx, rng, [][]any{row}); err != nil {
			return sheetFailure("update", err), false
		}
		return models.SyncResult{Success: true, Message: "updated existing row", Action: models.SyncActionUpdated, Row: rowNum}, false
	}

	if err := s.sheets.Append(ctx, sheets.Range(sheet, "A1"), [][]any{row}); err != nil {
		return sheetFailure("append", err), false
	}
	return models.SyncResult{Success: true, Message: "appended new row", Action: models.SyncActionAppended, Row: len(keys) + 1}, false
}

// findKeyRow returns the 1-based sheet row holding key, or 0. Row 1 is the
// header and is never matched
func findKeyRow(layout mapper.Layout, keys [][]any, key string) int {
	for i := 1; i < len(keys); i++ {
		if len(keys[i]) == 0 {
			continue
		}
		if layout.NormalizeKey(keys[i][0]) == key {
			return i + 1
		}
	}
	return 0
}

// FullSync clears the tab and rewrites header plus every record. It is the
// repair path for rows the incremental engine missed
func (s *SyncService) FullSync(ctx context.Context, collection, sheetName string) (models.FullSyncResult, error) {
	layout, ok := mapper.LayoutFor(collection)
	if !ok {
		return models.FullSyncResult{}, fmt.Errorf("%w: %s", models.ErrUnsupportedCollection, collection)
	}
	sheet := layout.Sheet(sheetName)
	l := s.logger.With("collection", collection, "sheet", sheet)

	rows, err := s.formatAll(ctx, collection)
	if err != nil {
		return models.FullSyncResult{Sheet: sheet}, fmt.Errorf("load %s: %w", collection, err)
	}

	sheetID, _, err := s.sheets.EnsureSheet(ctx, sheet)
	if err != nil {
		return models.FullSyncResult{Sheet: sheet}, fmt.Errorf("ensure sheet: %w", err)
	}

	if err := s.sheets.Clear(ctx, sheets.Range(sheet, "")); err != nil {
		return models.FullSyncResult{Sheet: sheet}, fmt.Errorf("clear sheet: %w", err)
	}

	values := make([][]any, 0, len(rows)+1)
	values = append(values, mapper.HeaderRow(layout.Headers))
	values = append(values, rows...)
	if err := s.sheets.Update(ctx, sheets.Range(sheet, "A1"), values); err != nil {
		return models.FullSyncResult{Sheet: sheet}, fmt.Errorf("write sheet: %w", err)
	}

	if err := s.sheets.BoldHeader(ctx, sheetID); err != nil {
		l.Warn("Header formatting failed", "error", err)
	}

	metrics.FullSyncRows.WithLabelValues(sheet).Set(float64(len(rows)))
	l.Info("Full ledger sync complete", "rows", len(rows))
	return models.FullSyncResult{Sheet: sheet, Count: len(rows)}, nil
}

func (s *SyncService) formatRecord(ctx context.Context, collection string, id primitive.ObjectID) ([]any, error) {
	switch collection {
	case models.CollectionUsers:
		u, err := s.store.FindUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return mapper.UserRow(*u), nil

	case models.CollectionForms:
		f, err := s.store.FindForm(ctx, id)
		if err != nil {
			return nil, err
		}
		owner, err := s.optionalUser(ctx, f.OwnerID)
		if err != nil {
			return nil, err
		}
		return mapper.FormRow(*f, owner), nil

	case models.CollectionPayments:
		p, err := s.store.FindPayment(ctx, id)
		if err != nil {
			return nil, err
		}
		owner, err := s.optionalUser(ctx, p.OwnerID)
		if err != nil {
			return nil, err
		}
		forms, err := s.store.FormsByOwner(ctx, p.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("load owner forms: %w", err)
		}
		return mapper.PaymentRow(mapper.PaymentContext{Payment: *p, Owner: owner, Forms: forms}), nil
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedCollection, collection)
}

func (s *SyncService) formatAll(ctx context.Context, collection string) ([][]any, error) {
	switch collection {
	case models.CollectionUsers:
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([][]any, 0, len(users))
		for _, u := range users {
			rows = append(rows, mapper.UserRow(u))
		}
		return rows, nil

	case models.CollectionForms:
		forms, err := s.store.ListForms(ctx)
		if err != nil {
			return nil, err
		}
		users, err := s.usersByID(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([][]any, 0, len(forms))
		for _, f := range forms {
			rows = append(rows, mapper.FormRow(f, users[f.OwnerID]))
		}
		return rows, nil

	case models.CollectionPayments:
		payments, err := s.store.ListPayments(ctx)
		if err != nil {
			return nil, err
		}
		users, err := s.usersByID(ctx)
		if err != nil {
			return nil, err
		}
		forms, err := s.store.ListForms(ctx)
		if err != nil {
			return nil, err
		}
		byOwner := groupFormsByOwner(forms)
		rows := make([][]any, 0, len(payments))
		for _, p := range payments {
			rows = append(rows, mapper.PaymentRow(mapper.PaymentContext{
				Payment: p,
				Owner:   users[p.OwnerID],
				Forms:   byOwner[p.OwnerID],
			}))
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedCollection, collection)
}

func (s *SyncService) optionalUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if id.IsZero() {
		return nil, nil
	}
	u, err := s.store.FindUser(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}
	return u, nil
}

func (s *SyncService) usersByID(ctx context.Context) (map[primitive.ObjectID]*models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func groupFormsByOwner(forms []models.Form) map[primitive.ObjectID][]models.Form {
	out := make(map[primitive.ObjectID][]models.Form)
	for _, f := range forms {
		out[f.OwnerID] = append(out[f.OwnerID], f)
	}
	return out
}

func sheetFailure(op string, err error) models.SyncResult {
	if errors.Is(err, sheets.ErrNotConfigured) {
		return models.SyncFailure(sheets.ErrNotConfigured.Error())
	}
	return models.SyncFailure(fmt.Sprintf("sheet %s failed: %v", op, err))
}

func isBlankRow(row []any) bool {
	for _, c := range row {
		if mapper.CellString(c) != "" {
			return false
		}
	}
	return true
}
