package models

import "time"

// Dead letter lifecycle
const (
	DeadLetterPending    = "pending"
	DeadLetterProcessing = "processing"
	DeadLetterResolved   = "resolved"
	DeadLetterDead       = "dead"
)

// DeadLetter is a failed detached sync kept for replay
type DeadLetter struct {
	ID            int64     `db:"id" json:"id"`
	CorrelationID string    `db:"correlation_id" json:"correlation_id"`
	Collection    string    `db:"collection" json:"collection"`
	RecordID      string    `db:"record_id" json:"record_id"`
	Sheet         string    `db:"sheet" json:"sheet,omitempty"`
	Error         string    `db:"error_log" json:"error"`
	Attempts      int       `db:"attempts" json:"attempts"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Request rebuilds the sync request a dead letter came from
func (d DeadLetter) Request() SyncRequest {
	return SyncRequest{
		ID:          d.CorrelationID,
		Collection:  d.Collection,
		RecordID:    d.RecordID,
		Sheet:       d.Sheet,
		RequestedAt: d.CreatedAt,
	}
}
