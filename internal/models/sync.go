package models

import (
	"time"

	"github.com/google/uuid"
)

// Sync actions reported in SyncResult
const (
	SyncActionUpdated  = "updated"
	SyncActionAppended = "appended"
)

// SyncRequest is one detached push of a single record
type SyncRequest struct {
	ID          string    `json:"id"`
	Collection  string    `json:"collection"`
	RecordID    string    `json:"record_id"`
	Sheet       string    `json:"sheet,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewSyncRequest(collection, recordID, sheet string) SyncRequest {
	return SyncRequest{
		ID:          uuid.NewString(),
		Collection:  collection,
		RecordID:    recordID,
		Sheet:       sheet,
		RequestedAt: time.Now().UTC(),
	}
}

// SyncResult is the non-throwing outcome of an incremental push
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Row     int    `json:"row,omitempty"`
}

func SyncFailure(msg string) SyncResult {
	return SyncResult{Success: false, Message: msg}
}

type PullResult struct {
	Updated  int      `json:"updatedCount"`
	NotFound int      `json:"notFoundCount"`
	Skipped  int      `json:"skippedCount"`
	Errors   []string `json:"errors,omitempty"`
}

type FullSyncResult struct {
	Sheet string `json:"sheet"`
	Count int    `json:"count"`
}

type ReconcileResult struct {
	FormsScanned int      `json:"formsScanned"`
	UsersUpdated int      `json:"usersUpdated"`
	Errors       []string `json:"errors,omitempty"`
}

type DueReport struct {
	Sheet   string             `json:"sheet"`
	Records []DuePaymentRecord `json:"records"`
	Pushed  int                `json:"pushed"`
}

// MaxReportedErrors bounds the error sample returned to admins
const MaxReportedErrors = 10

// AppendError adds msg to a bounded error sample
func AppendError(errs []string, msg string) []string {
	if len(errs) >= MaxReportedErrors {
		return errs
	}
	return append(errs, msg)
}
