package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Form is a registration for one sport. Fields.PlayerFields is the source of
// truth for head-counts
type Form struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID   primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Title     string             `bson:"title" json:"title"`
	Status    string             `bson:"status" json:"status"`
	Fields    FormFields         `bson:"fields" json:"fields"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

type FormFields struct {
	PlayerFields []Participant `bson:"playerFields" json:"playerFields"`
	CoachFields  *Participant  `bson:"coachFields,omitempty" json:"coachFields,omitempty"`
}

type Participant struct {
	Name   string `bson:"name" json:"name"`
	Email  string `bson:"email,omitempty" json:"email,omitempty"`
	Phone  string `bson:"phone,omitempty" json:"phone,omitempty"`
	Gender string `bson:"gender,omitempty" json:"gender,omitempty"`
}

// PlayerCount is the live head-count of the form
func (f Form) PlayerCount() int {
	return len(f.Fields.PlayerFields)
}

// DashboardStatus maps the form lifecycle onto the user dashboard vocabulary
func (f Form) DashboardStatus() string {
	if f.Status == FormStatusConfirmed {
		return DashboardConfirmed
	}
	return DashboardNotConfirmed
}
