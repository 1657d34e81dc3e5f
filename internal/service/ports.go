package service

import (
	"context"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store defines the record store contract used by the sync subsystem
type Store interface {
	FindUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindForm(ctx context.Context, id primitive.ObjectID) (*models.Form, error)
	FindPayment(ctx context.Context, id primitive.ObjectID) (*models.Payment, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListForms(ctx context.Context) ([]models.Form, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
	FormsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Form, error)
	VerifiedPaymentForOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Payment, error)
	UpdateByID(ctx context.Context, collection string, id primitive.ObjectID, set map[string]any) (bool, error)
	UpdateUserByEmail(ctx context.Context, email string, set map[string]any) (bool, error)
}

// SheetAPI defines the ledger spreadsheet contract. Ranges are A1 strings
// built with sheets.Range
type SheetAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, rows [][]any) error
	Append(ctx context.Context, rng string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
	EnsureSheet(ctx context.Context, title string) (int64, bool, error)
	BoldHeader(ctx context.Context, sheetID int64) error
}

// DeadLetterSink receives detached syncs that failed
type DeadLetterSink interface {
	Record(ctx context.Context, dl models.DeadLetter) error
}

// SyncTrigger schedules a best-effort push; it never reports the outcome
type SyncTrigger interface {
	Dispatch(req models.SyncRequest)
}
