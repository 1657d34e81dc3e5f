package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Due payment statuses
const (
	DueStatusPending    = "pending"
	DueStatusOverpaid   = "overpaid"
	DueStatusUnpaid     = "unpaid"
	DueStatusUnverified = "unverified"
)

// DuePaymentRecord is derived on demand and never stored as source of truth
type DuePaymentRecord struct {
	UserID              primitive.ObjectID `json:"userId"`
	Name                string             `json:"name"`
	Email               string             `json:"email"`
	PaymentID           primitive.ObjectID `json:"paymentId,omitempty"`
	OriginalPlayerCount int                `json:"originalPlayerCount"`
	CurrentPlayerCount  int                `json:"currentPlayerCount"`
	PlayerDifference    int                `json:"playerDifference"`
	AmountDue           int                `json:"amountDue"`
	Status              string             `json:"status"`
}

// NewDuePaymentRecord fills the derived fields from the two counts
func NewDuePaymentRecord(user User, paymentID primitive.ObjectID, original, current int, status string) DuePaymentRecord {
	diff := current - original
	return DuePaymentRecord{
		UserID:              user.ID,
		Name:                user.Name,
		Email:               user.Email,
		PaymentID:           paymentID,
		OriginalPlayerCount: original,
		CurrentPlayerCount:  current,
		PlayerDifference:    diff,
		AmountDue:           diff * FeePerPlayer,
		Status:              status,
	}
}
