package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReconcileService keeps player counts, payment amounts and the users'
// denormalized dashboard consistent with the registration forms
type ReconcileService struct {
	store   Store
	trigger SyncTrigger
	logger  *slog.Logger
	now     func() time.Time
}

func NewReconcileService(store Store, trigger SyncTrigger, l *slog.Logger) *ReconcileService {
	return &ReconcileService{
		store:   store,
		trigger: trigger,
		logger:  l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UpdateFormFields saves an admin edit of a form's participants. When the form
// is submitted and its owner holds a verified payment the amount is recomputed
// and the snapshot baseline for the sport moves to the new count. Validation
// failures abort before anything is written
func (r *ReconcileService) UpdateFormFields(ctx context.Context, formID string, fields models.FormFields) (*models.Form, error) {
	id, err := models.ParseID(formID)
	if err != nil {
		return nil, err
	}
	if len(fields.PlayerFields) == 0 {
		return nil, &models.ValidationError{Field: "playerFields", Reason: "at least one player is required"}
	}

	form, err := r.store.FindForm(ctx, id)
	if err != nil {
		return nil, err
	}
	l := r.logger.With("form_id", formID, "owner_id", form.OwnerID.Hex(), "sport", form.Title)

	var payment *models.Payment
	var paymentSet map[string]any
	if form.Status == models.FormStatusSubmitted {
		payment, err = r.store.VerifiedPaymentForOwner(ctx, form.OwnerID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("load verified payment: %w", err)
		}
		if payment != nil {
			ownerForms, err := r.store.FormsByOwner(ctx, form.OwnerID)
			if err != nil {
				return nil, fmt.Errorf("load owner forms: %w", err)
			}
			paymentSet, err = r.recomputePayment(*payment, ownerForms, *form, len(fields.PlayerFields))
			if err != nil {
				return nil, err
			}
		}
	}

	now := r.now()
	matched, err := r.store.UpdateByID(ctx, models.CollectionForms, id, map[string]any{
		"fields":    fields,
		"updatedAt": now,
	})
	if err != nil {
		return nil, fmt.Errorf("save form: %w", err)
	}
	if !matched {
		return nil, models.ErrNotFound
	}
	form.Fields = fields
	form.UpdatedAt = now

	if payment != nil {
		if _, err := r.store.UpdateByID(ctx, models.CollectionPayments, payment.ID, paymentSet); err != nil {
			// The form write stands, so its ledger row still has to follow
			r.trigger.Dispatch(models.NewSyncRequest(models.CollectionForms, id.Hex(), ""))
			return form, fmt.Errorf("form saved but payment update failed: %w", err)
		}
		l.Info("Payment amount recomputed after player edit",
			"payment_id", payment.ID.Hex(),
			"players", len(fields.PlayerFields),
			"amount", paymentSet["amountInNumbers"],
		)
	}

	r.trigger.Dispatch(models.NewSyncRequest(models.CollectionForms, id.Hex(), ""))
	if payment != nil {
		r.trigger.Dispatch(models.NewSyncRequest(models.CollectionPayments, payment.ID.Hex(), ""))
	}
	return form, nil
}

func (r *ReconcileService) recomputePayment(p models.Payment, ownerForms []models.Form, edited models.Form, players int) (map[string]any, error) {
	if players == 0 {
		return nil, &models.ValidationError{Field: "playerFields", Reason: "player count cannot be zero"}
	}
	if p.AccommodationPrice < 0 {
		return nil, &models.ValidationError{Field: "accommodationPrice", Reason: "cannot be negative"}
	}
	newTotal := float64(players*models.FeePerPlayer) + p.AccommodationPrice
	if newTotal <= 0 {
		return nil, &models.ValidationError{Field: "amount", Reason: "recomputed total must be positive"}
	}

	snap, ok, err := models.ParseSnapshot(p.PaymentData)
	if err != nil {
		r.logger.Warn("Unreadable payment snapshot, rebuilding from estimate", "payment_id", p.ID.Hex(), "error", err)
	}
	if !ok {
		snap = r.baselineSnapshot(p, ownerForms)
	}
	snap = snap.WithPlayers(edited.Title, players, edited.DashboardStatus())

	encoded, err := snap.Encode()
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"amountInNumbers": newTotal,
		"amount":          strconv.FormatFloat(newTotal, 'f', -1, 64),
		"paymentData":     encoded,
		"updatedAt":       r.now(),
	}, nil
}

// baselineSnapshot materializes the legacy estimate so later reads no longer
// depend on the fallback
func (r *ReconcileService) baselineSnapshot(p models.Payment, forms []models.Form) models.PaymentSnapshot {
	snap := models.NewSnapshot(r.now())
	for i, n := range OriginalPlayers(p, forms) {
		snap = snap.WithPlayers(forms[i].Title, n, forms[i].DashboardStatus())
	}
	return snap
}

// OriginalPlayers returns, per form, the player count the payment covered.
// The snapshot is authoritative; a sport missing from it was added after
// verification and counts as 0. Without a snapshot the paid amount is turned
// back into players and spread over the forms proportionally to their current
// size, a degraded estimate for legacy payments
func OriginalPlayers(p models.Payment, forms []models.Form) []int {
	out := make([]int, len(forms))
	snap, ok, err := models.ParseSnapshot(p.PaymentData)
	if err == nil && ok {
		for i, f := range forms {
			out[i], _ = snap.Players(f.Title)
		}
		return out
	}

	weights := make([]int, len(forms))
	for i, f := range forms {
		weights[i] = f.PlayerCount()
	}
	return distribute(p.PaidForPlayers(), weights)
}

// distribute splits total across weights with the largest-remainder method so
// the parts always sum to total
func distribute(total int, weights []int) []int {
	out := make([]int, len(weights))
	if len(weights) == 0 || total <= 0 {
		return out
	}

	sum := 0
	for _, w := range weights {
		sum += max(w, 0)
	}
	if sum == 0 {
		for i := range weights {
			weights[i] = 1
		}
		sum = len(weights)
	}

	type rem struct{ idx, frac int }
	rems := make([]rem, len(weights))
	assigned := 0
	for i, w := range weights {
		w = max(w, 0)
		out[i] = total * w / sum
		rems[i] = rem{idx: i, frac: total * w % sum}
		assigned += out[i]
	}

	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; assigned < total; i++ {
		out[rems[i%len(rems)].idx]++
		assigned++
	}
	return out
}

// ReconcileAll rebuilds every owner's submittedForms map from the forms
// collection and force-writes it onto the user. This is the repair path when
// the dashboard view drifted
func (r *ReconcileService) ReconcileAll(ctx context.Context) (models.ReconcileResult, error) {
	var result models.ReconcileResult

	forms, err := r.store.ListForms(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("players", "error").Inc()
		return result, fmt.Errorf("load forms: %w", err)
	}
	result.FormsScanned = len(forms)

	byOwner := make(map[primitive.ObjectID]map[string]models.SubmittedForm)
	var owners []primitive.ObjectID
	for _, f := range forms {
		if f.OwnerID.IsZero() {
			result.Errors = models.AppendError(result.Errors, fmt.Sprintf("form %s has no owner", f.ID.Hex()))
			continue
		}
		m, ok := byOwner[f.OwnerID]
		if !ok {
			m = make(map[string]models.SubmittedForm)
			byOwner[f.OwnerID] = m
			owners = append(owners, f.OwnerID)
		}
		if _, dup := m[f.Title]; dup {
			r.logger.Warn("Owner has several forms for one sport, latest wins",
				"owner_id", f.OwnerID.Hex(), "sport", f.Title)
		}
		m[f.Title] = models.SubmittedForm{Players: f.PlayerCount(), Status: f.DashboardStatus()}
	}

	for _, owner := range owners {
		matched, err := r.store.UpdateByID(ctx, models.CollectionUsers, owner, map[string]any{
			"submittedForms": byOwner[owner],
		})
		if err != nil {
			result.Errors = models.AppendError(result.Errors, fmt.Sprintf("user %s: %v", owner.Hex(), err))
			continue
		}
		if !matched {
			result.Errors = models.AppendError(result.Errors, fmt.Sprintf("user %s not found", owner.Hex()))
			continue
		}
		result.UsersUpdated++
		r.trigger.Dispatch(models.NewSyncRequest(models.CollectionUsers, owner.Hex(), ""))
	}

	metrics.ReconcileRuns.WithLabelValues("players", "ok").Inc()
	r.logger.Info("Player count reconciliation complete",
		"forms", result.FormsScanned,
		"users_updated", result.UsersUpdated,
		"errors", len(result.Errors),
	)
	return result, nil
}
