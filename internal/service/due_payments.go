package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/mapper"
	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/internal/sheets"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DueService derives amount-due records and mirrors them into a report tab
type DueService struct {
	store  Store
	sheets SheetAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewDueService(store Store, api SheetAPI, l *slog.Logger) *DueService {
	return &DueService{
		store:  store,
		sheets: api,
		logger: l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DuePayments walks verified payments, users with submitted forms but no
// payment, and payments still waiting for verification. Records are always
// regenerated from the store
func (d *DueService) DuePayments(ctx context.Context) ([]models.DuePaymentRecord, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	forms, err := d.store.ListForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forms: %w", err)
	}
	payments, err := d.store.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	owner := func(id primitive.ObjectID) models.User {
		if u, ok := byID[id]; ok {
			return u
		}
		return models.User{ID: id}
	}

	activeForms := make(map[primitive.ObjectID][]models.Form)
	for _, f := range forms {
		if f.Status == models.FormStatusDraft {
			continue
		}
		activeForms[f.OwnerID] = append(activeForms[f.OwnerID], f)
	}

	verified := latestVerified(payments)
	// A rejected payment leaves the owner unpaid
	hasPayment := make(map[primitive.ObjectID]bool, len(payments))
	for _, p := range payments {
		if p.Status == models.PaymentStatusRejected {
			continue
		}
		hasPayment[p.OwnerID] = true
	}

	var records []models.DuePaymentRecord

	for _, p := range sortedPayments(verified) {
		owned := activeForms[p.OwnerID]
		original, current := paidAndCurrent(p, owned)
		switch {
		case current > original:
			records = append(records, models.NewDuePaymentRecord(owner(p.OwnerID), p.ID, original, current, models.DueStatusPending))
		case current < original:
			records = append(records, models.NewDuePaymentRecord(owner(p.OwnerID), p.ID, original, current, models.DueStatusOverpaid))
		}
	}

	for _, u := range users {
		owned, ok := activeForms[u.ID]
		if !ok || hasPayment[u.ID] {
			continue
		}
		records = append(records, models.NewDuePaymentRecord(u, primitive.NilObjectID, 0, totalPlayers(owned), models.DueStatusUnpaid))
	}

	for _, p := range payments {
		if p.Verified() || p.Status == models.PaymentStatusRejected {
			continue
		}
		if _, ok := verified[p.OwnerID]; ok {
			continue
		}
		records = append(records, models.NewDuePaymentRecord(owner(p.OwnerID), p.ID, p.PaidForPlayers(), totalPlayers(activeForms[p.OwnerID]), models.DueStatusUnverified))
	}

	counts := map[string]int{}
	for _, r := range records {
		counts[r.Status]++
	}
	for _, status := range []string{models.DueStatusPending, models.DueStatusOverpaid, models.DueStatusUnpaid, models.DueStatusUnverified} {
		metrics.DuePayments.WithLabelValues(status).Set(float64(counts[status]))
	}

	return records, nil
}

// paidAndCurrent totals the players a verified payment covered against the
// owner's live registrations. Every captured sport counts, withdrawn ones
// included; legacy payments without a snapshot fall back to the paid amount,
// which is what OriginalPlayers spreads over the forms
func paidAndCurrent(p models.Payment, owned []models.Form) (original, current int) {
	current = totalPlayers(owned)
	if snap, ok, err := models.ParseSnapshot(p.PaymentData); err == nil && ok {
		return snap.TotalPlayers(), current
	}
	return p.PaidForPlayers(), current
}

// PushDuePayments regenerates the records and replaces every data row of the
// report tab. The header is written only when the tab is new or blank
func (d *DueService) PushDuePayments(ctx context.Context, sheetName string) (models.DueReport, error) {
	sheet := sheetName
	if sheet == "" {
		sheet = models.SheetDuePayments
	}
	report := models.DueReport{Sheet: sheet}

	records, err := d.DuePayments(ctx)
	if err != nil {
		return report, err
	}
	report.Records = records

	_, created, err := d.sheets.EnsureSheet(ctx, sheet)
	if err != nil {
		return report, fmt.Errorf("ensure sheet: %w", err)
	}

	writeHeader := created
	if !created {
		header, err := d.sheets.Get(ctx, sheets.Range(sheet, "1:1"))
		if err != nil {
			return report, fmt.Errorf("read header: %w", err)
		}
		writeHeader = len(header) == 0 || isBlankRow(header[0])
	}
	if writeHeader {
		if err := d.sheets.Update(ctx, sheets.Range(sheet, "A1"), [][]any{mapper.HeaderRow(mapper.DuePaymentHeaders)}); err != nil {
			return report, fmt.Errorf("write header: %w", err)
		}
	}

	if err := d.sheets.Clear(ctx, sheets.Range(sheet, "A2:Z")); err != nil {
		return report, fmt.Errorf("clear rows: %w", err)
	}

	if len(records) > 0 {
		generated := d.now()
		rows := make([][]any, 0, len(records))
		for _, r := range records {
			rows = append(rows, mapper.DueRow(r, generated))
		}
		if err := d.sheets.Update(ctx, sheets.Range(sheet, "A2"), rows); err != nil {
			return report, fmt.Errorf("write rows: %w", err)
		}
	}

	report.Pushed = len(records)
	d.logger.Info("Due payments pushed", "sheet", sheet, "records", report.Pushed)
	return report, nil
}

// latestVerified keeps the newest verified payment per owner
func latestVerified(payments []models.Payment) map[primitive.ObjectID]models.Payment {
	out := make(map[primitive.ObjectID]models.Payment)
	for _, p := range payments {
		if !p.Verified() {
			continue
		}
		if cur, ok := out[p.OwnerID]; !ok || p.CreatedAt.After(cur.CreatedAt) {
			out[p.OwnerID] = p
		}
	}
	return out
}

func sortedPayments(m map[primitive.ObjectID]models.Payment) []models.Payment {
	out := make([]models.Payment, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func totalPlayers(forms []models.Form) int {
	n := 0
	for _, f := range forms {
		n += f.PlayerCount()
	}
	return n
}
