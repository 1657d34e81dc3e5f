package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Payment struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID            primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Status             string             `bson:"status" json:"status"`
	TransactionID      string             `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	Amount             string             `bson:"amount,omitempty" json:"amount,omitempty"`
	AmountInNumbers    float64            `bson:"amountInNumbers" json:"amountInNumbers"`
	AccommodationPrice float64            `bson:"accommodationPrice" json:"accommodationPrice"`
	SendEmail          bool               `bson:"sendEmail" json:"sendEmail"`
	RegistrationStatus string             `bson:"registrationStatus,omitempty" json:"registrationStatus,omitempty"`
	PaymentData        string             `bson:"paymentData,omitempty" json:"paymentData,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

func (p Payment) Verified() bool {
	return p.Status == PaymentStatusVerified
}

// PaidForPlayers estimates how many players the amount covers once the
// accommodation fee is taken out. Never negative
func (p Payment) PaidForPlayers() int {
	net := p.AmountInNumbers - p.AccommodationPrice
	if net <= 0 {
		return 0
	}
	return int(net / FeePerPlayer)
}
