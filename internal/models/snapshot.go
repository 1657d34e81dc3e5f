package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SnapshotVersion is written by Encode. Blobs without a version field are the
// schema-less payloads stored before versioning and are migrated on read
const SnapshotVersion = 1

// PaymentSnapshot records per-sport player counts at verification time. It is
// persisted as a JSON string in Payment.PaymentData
type PaymentSnapshot struct {
	Version        int                      `json:"version"`
	SubmittedForms map[string]SnapshotEntry `json:"submittedForms"`
	CapturedAt     time.Time                `json:"capturedAt,omitempty"`
}

type SnapshotEntry struct {
	Players snapshotCount `json:"Players"`
	Status  string        `json:"status,omitempty"`
}

// snapshotCount accepts both numbers and numeric strings; older payloads
// carried counts copied straight from form inputs
type snapshotCount int

func (c *snapshotCount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*c = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("snapshot player count %q: %w", s, err)
		}
		*c = snapshotCount(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*c = snapshotCount(int(f))
	return nil
}

// NewSnapshot returns an empty current-version snapshot
func NewSnapshot(now time.Time) PaymentSnapshot {
	return PaymentSnapshot{
		Version:        SnapshotVersion,
		SubmittedForms: make(map[string]SnapshotEntry),
		CapturedAt:     now,
	}
}

// ParseSnapshot decodes Payment.PaymentData. ok is false when no snapshot was
// ever captured so callers fall back to the legacy estimate
func ParseSnapshot(raw string) (snap PaymentSnapshot, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "{}" {
		return PaymentSnapshot{}, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return PaymentSnapshot{}, false, fmt.Errorf("decode payment snapshot: %w", err)
	}
	if snap.Version == 0 {
		snap.Version = SnapshotVersion
	}
	if len(snap.SubmittedForms) == 0 {
		return PaymentSnapshot{}, false, nil
	}
	return snap, true, nil
}

// Players returns the captured count for a sport
func (s PaymentSnapshot) Players(sport string) (int, bool) {
	e, ok := s.SubmittedForms[sport]
	if !ok {
		return 0, false
	}
	return int(e.Players), true
}

// TotalPlayers sums every captured sport, including sports the owner has
// since withdrawn
func (s PaymentSnapshot) TotalPlayers() int {
	total := 0
	for _, e := range s.SubmittedForms {
		total += int(e.Players)
	}
	return total
}

// WithPlayers returns a copy with the sport's baseline moved to n
func (s PaymentSnapshot) WithPlayers(sport string, n int, status string) PaymentSnapshot {
	out := PaymentSnapshot{
		Version:        SnapshotVersion,
		SubmittedForms: make(map[string]SnapshotEntry, len(s.SubmittedForms)+1),
		CapturedAt:     s.CapturedAt,
	}
	for k, v := range s.SubmittedForms {
		out.SubmittedForms[k] = v
	}
	entry := out.SubmittedForms[sport]
	entry.Players = snapshotCount(n)
	if status != "" {
		entry.Status = status
	}
	out.SubmittedForms[sport] = entry
	return out
}

func (s PaymentSnapshot) Encode() (string, error) {
	s.Version = SnapshotVersion
	if s.SubmittedForms == nil {
		s.SubmittedForms = map[string]SnapshotEntry{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode payment snapshot: %w", err)
	}
	return string(b), nil
}
