package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Guizzs26/go-sync-sheets/internal/mapper"
	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func financeRow(cells map[string]any) []any {
	row := make([]any, len(mapper.FinanceHeaders))
	for i, h := range mapper.FinanceHeaders {
		if v, ok := cells[h]; ok {
			row[i] = v
		} else {
			row[i] = ""
		}
	}
	return row
}

func TestPullFromSheet_WritesOnlyAllowListedColumns(t *testing.T) {
	store := seededStore(t)
	sheet := newMemSheet()
	sheet.seed(models.SheetFinance,
		mapper.HeaderRow(mapper.FinanceHeaders),
		financeRow(map[string]any{
			"Payment ID":          paymentHex,
			"Transaction ID":      "FORGED",
			"Amount":              "1",
			"Verification":        "rejected",
			"Registration Status": "approved",
			"Send Email":          "TRUE",
		}),
	)
	svc := NewPullService(store, sheet, discardLogger())

	res, err := svc.PullFromSheet(context.Background(), "", models.CollectionPayments)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.NotFound)

	p := store.payment(mustID(t, paymentHex))
	assert.Equal(t, "approved", p.RegistrationStatus)
	assert.True(t, p.SendEmail)
	assert.Equal(t, "TXN-1", p.TransactionID)
	assert.Equal(t, 1600.0, p.AmountInNumbers)
	assert.Equal(t, models.PaymentStatusVerified, p.Status)
}

func TestPullFromSheet_SkipsBadRows(t *testing.T) {
	store := seededStore(t)
	sheet := newMemSheet()
	sheet.seed(models.SheetFinance,
		mapper.HeaderRow(mapper.FinanceHeaders),
		financeRow(map[string]any{"Payment ID": "", "Registration Status": "approved"}),
		financeRow(map[string]any{"Payment ID": "12345", "Registration Status": "approved"}),
		financeRow(map[string]any{"Payment ID": paymentHex}),
		financeRow(map[string]any{"Payment ID": "64b7f0c2a1b2c3d4e5f609aa", "Registration Status": "approved"}),
		[]any{"short"},
	)
	svc := NewPullService(store, sheet, discardLogger())

	res, err := svc.PullFromSheet(context.Background(), models.SheetFinance, models.CollectionPayments)

	require.NoError(t, err)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 1, res.NotFound)
	assert.Equal(t, 4, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "malformed id")
	assert.Zero(t, store.writeCount())
}

func TestPullFromSheet_UsersMatchByFoldedEmail(t *testing.T) {
	store := newMemStore()
	id := mustID(t, ownerHex)
	store.addUser(models.User{ID: id, Name: "Foo", Email: "foo@bar.com"})
	sheet := newMemSheet()
	sheet.seed(models.SheetUsers,
		mapper.HeaderRow(mapper.UserHeaders),
		[]any{ownerHex, "Foo@Bar.com", "Foo", "", "", "TRUE", "FALSE", "yes"},
	)
	svc := NewPullService(store, sheet, discardLogger())

	res, err := svc.PullFromSheet(context.Background(), "", models.CollectionUsers)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	u := store.user(id)
	assert.True(t, u.EmailVerified)
	assert.False(t, u.RegistrationDone)
	assert.True(t, u.PaymentDone)
	assert.Equal(t, "Foo", u.Name)
}

func TestPullFromSheet_EmptySheet(t *testing.T) {
	svc := NewPullService(seededStore(t), newMemSheet(), discardLogger())

	res, err := svc.PullFromSheet(context.Background(), "", models.CollectionForms)

	require.NoError(t, err)
	assert.Equal(t, models.PullResult{}, res)
}

func TestPullFromSheet_ReadFailureIsReturned(t *testing.T) {
	sheet := newMemSheet()
	sheet.failErr = errors.New("backend unavailable")
	svc := NewPullService(seededStore(t), sheet, discardLogger())

	_, err := svc.PullFromSheet(context.Background(), "", models.CollectionPayments)

	assert.ErrorContains(t, err, "backend unavailable")
}
