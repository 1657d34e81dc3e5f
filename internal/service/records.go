package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// recordFields is the admin-editable surface per collection. Anything else is
// rejected before reaching the store
var recordFields = map[string]map[string]fieldType{
	models.CollectionPayments: {
		"status":             fieldString,
		"registrationStatus": fieldString,
		"sendEmail":          fieldBool,
		"transactionId":      fieldString,
	},
	models.CollectionUsers: {
		"emailVerified":    fieldBool,
		"registrationDone": fieldBool,
		"paymentDone":      fieldBool,
		"name":             fieldString,
		"phone":            fieldString,
		"college":          fieldString,
	},
}

type fieldType int

const (
	fieldString fieldType = iota
	fieldBool
)

var paymentStatuses = map[string]bool{
	models.PaymentStatusPending:  true,
	models.PaymentStatusVerified: true,
	models.PaymentStatusRejected: true,
}

// RecordService applies admin edits to payments and users and schedules the
// ledger push for the touched record
type RecordService struct {
	store   Store
	trigger SyncTrigger
	logger  *slog.Logger
	now     func() time.Time
}

func NewRecordService(store Store, trigger SyncTrigger, l *slog.Logger) *RecordService {
	return &RecordService{
		store:   store,
		trigger: trigger,
		logger:  l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UpdateRecord validates fields against the collection allow-list and writes
// them. A payment moving to verified captures the player snapshot in the same
// write
func (r *RecordService) UpdateRecord(ctx context.Context, collection, recordID string, fields map[string]any) error {
	allowed, ok := recordFields[collection]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedCollection, collection)
	}
	id, err := models.ParseID(recordID)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return &models.ValidationError{Field: "body", Reason: "no fields to update"}
	}

	set := make(map[string]any, len(fields)+1)
	for _, name := range sortedKeys(fields) {
		kind, ok := allowed[name]
		if !ok {
			return &models.ValidationError{Field: name, Reason: "field is not editable"}
		}
		v, err := coerceField(name, kind, fields[name])
		if err != nil {
			return err
		}
		set[name] = v
	}

	if collection == models.CollectionPayments {
		if status, ok := set["status"].(string); ok {
			if !paymentStatuses[status] {
				return &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown payment status %q", status)}
			}
			if status == models.PaymentStatusVerified {
				if err := r.captureSnapshot(ctx, id, set); err != nil {
					return err
				}
			}
		}
	}

	matched, err := r.store.UpdateByID(ctx, collection, id, set)
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	if !matched {
		return models.ErrNotFound
	}

	r.logger.Info("Record updated", "collection", collection, "record_id", id.Hex(), "fields", len(set))
	r.trigger.Dispatch(models.NewSyncRequest(collection, id.Hex(), ""))
	return nil
}

// captureSnapshot freezes the owner's current per-sport counts. A payment that
// is already verified keeps its existing baseline
func (r *RecordService) captureSnapshot(ctx context.Context, id primitive.ObjectID, set map[string]any) error {
	p, err := r.store.FindPayment(ctx, id)
	if err != nil {
		return err
	}
	if p.Verified() {
		return nil
	}
	forms, err := r.store.FormsByOwner(ctx, p.OwnerID)
	if err != nil {
		return fmt.Errorf("load owner forms: %w", err)
	}

	snap := models.NewSnapshot(r.now())
	for _, f := range forms {
		if f.Status == models.FormStatusDraft {
			continue
		}
		snap = snap.WithPlayers(f.Title, f.PlayerCount(), f.DashboardStatus())
	}
	encoded, err := snap.Encode()
	if err != nil {
		return err
	}
	set["paymentData"] = encoded
	return nil
}

func coerceField(name string, kind fieldType, v any) (any, error) {
	switch kind {
	case fieldBool:
		b, ok := v.(bool)
		if !ok {
			return nil, &models.ValidationError{Field: name, Reason: "must be a boolean"}
		}
		return b, nil
	default:
		s, ok := v.(string)
		if !ok {
			return nil, &models.ValidationError{Field: name, Reason: "must be a string"}
		}
		return strings.TrimSpace(s), nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
