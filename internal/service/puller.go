package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Guizzs26/go-sync-sheets/internal/mapper"
	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/internal/sheets"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"
)

// PullService applies admin edits made in the ledger back into the store,
// restricted to each collection's allow-listed columns
type PullService struct {
	store  Store
	sheets SheetAPI
	logger *slog.Logger
}

func NewPullService(store Store, api SheetAPI, l *slog.Logger) *PullService {
	return &PullService{store: store, sheets: api, logger: l}
}

// PullFromSheet reads the whole tab once and writes one point update per
// matching row. Row-level problems are counted, never fatal
func (p *PullService) PullFromSheet(ctx context.Context, sheetName, collection string) (models.PullResult, error) {
	var result models.PullResult

	layout, ok := mapper.LayoutFor(collection)
	if !ok {
		return result, fmt.Errorf("%w: %s", models.ErrUnsupportedCollection, collection)
	}
	sheet := layout.Sheet(sheetName)
	l := p.logger.With("collection", collection, "sheet", sheet)

	rows, err := p.sheets.Get(ctx, sheets.Range(sheet, ""))
	if err != nil {
		return result, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		l.Info("Nothing to pull, sheet has no data rows")
		return result, nil
	}

	header := rows[0]
	keyIdx := layout.KeyIndex(header)

	for i, row := range rows[1:] {
		rowNum := i + 2

		if keyIdx >= len(row) {
			result.Skipped++
			metrics.PullRows.WithLabelValues(collection, "skipped").Inc()
			continue
		}
		key := layout.NormalizeKey(row[keyIdx])
		if key == "" {
			result.Skipped++
			metrics.PullRows.WithLabelValues(collection, "skipped").Inc()
			continue
		}
		if layout.KeyIsID() && !models.IsValidID(key) {
			result.Skipped++
			result.Errors = models.AppendError(result.Errors, fmt.Sprintf("row %d: malformed id %q", rowNum, key))
			metrics.PullRows.WithLabelValues(collection, "skipped").Inc()
			continue
		}

		update := mapper.ParseRow(layout, header, row)
		if len(update) == 0 {
			result.Skipped++
			metrics.PullRows.WithLabelValues(collection, "skipped").Inc()
			continue
		}

		matched, err := p.apply(ctx, layout, key, update)
		if err != nil {
			result.NotFound++
			result.Errors = models.AppendError(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			metrics.PullRows.WithLabelValues(collection, "error").Inc()
			l.Error("Pull row update failed", "row", rowNum, "key", key, "error", err)
			continue
		}
		if !matched {
			result.NotFound++
			metrics.PullRows.WithLabelValues(collection, "not_found").Inc()
			continue
		}
		result.Updated++
		metrics.PullRows.WithLabelValues(collection, "updated").Inc()
	}

	l.Info("Pull from ledger complete",
		"updated", result.Updated,
		"not_found", result.NotFound,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (p *PullService) apply(ctx context.Context, layout mapper.Layout, key string, update map[string]any) (bool, error) {
	if !layout.KeyIsID() {
		return p.store.UpdateUserByEmail(ctx, key, update)
	}
	id, err := models.ParseID(key)
	if err != nil {
		return false, err
	}
	return p.store.UpdateByID(ctx, layout.Collection, id, update)
}
