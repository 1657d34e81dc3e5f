package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID               primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	Name             string                   `bson:"name" json:"name"`
	Email            string                   `bson:"email" json:"email"`
	Phone            string                   `bson:"phone,omitempty" json:"phone,omitempty"`
	College          string                   `bson:"college,omitempty" json:"college,omitempty"`
	EmailVerified    bool                     `bson:"emailVerified" json:"emailVerified"`
	RegistrationDone bool                     `bson:"registrationDone" json:"registrationDone"`
	PaymentDone      bool                     `bson:"paymentDone" json:"paymentDone"`
	SubmittedForms   map[string]SubmittedForm `bson:"submittedForms,omitempty" json:"submittedForms,omitempty"`
	CreatedAt        time.Time                `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time                `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// SubmittedForm is the dashboard view of one sport, denormalized onto the user
type SubmittedForm struct {
	Players int    `bson:"Players" json:"Players"`
	Status  string `bson:"status" json:"status"`
}
