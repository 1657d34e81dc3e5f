package mapper

import (
	"strings"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/encoding"
)

// Header contracts. The pull allow-list matches on these strings, so text and
// order must stay stable for existing ledgers
var (
	FinanceHeaders = []string{
		"Submitted At", "Name", "Email", "Payment ID", "Transaction ID", "Amount",
		"Accommodation Price", "Total Players", "Sports", "Category", "Verification",
		"Registration Status", "Send Email",
	}
	UserHeaders = []string{
		"User ID", "Email", "Name", "Phone", "College", "Email Verified",
		"Registration Done", "Payment Done", "Sports", "Created At",
	}
	RegistrationHeaders = []string{
		"Form ID", "Owner ID", "Owner Email", "Sport", "Status", "Player Count",
		"Players", "Coach", "Submitted At", "Updated At",
	}
	DuePaymentHeaders = []string{
		"User ID", "Name", "Email", "Payment ID", "Original Players", "Current Players",
		"Player Difference", "Amount Due", "Status", "Generated At",
	}
)

// FieldKind tells the parser how to coerce a cell
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
)

// FieldRule maps any header containing Match (folded) onto a store field
type FieldRule struct {
	Match string
	Field string
	Kind  FieldKind
}

// Layout describes how one collection is mirrored into a sheet
type Layout struct {
	Collection     string
	DefaultSheet   string
	Headers        []string
	KeyHeader      string
	LegacyKeyIndex int
	Rules          []FieldRule
}

var layouts = map[string]Layout{
	models.CollectionPayments: {
		Collection:     models.CollectionPayments,
		DefaultSheet:   models.SheetFinance,
		Headers:        FinanceHeaders,
		KeyHeader:      "Payment ID",
		LegacyKeyIndex: 3,
		Rules: []FieldRule{
			{Match: "status", Field: "registrationStatus", Kind: KindString},
			{Match: "send email", Field: "sendEmail", Kind: KindBool},
		},
	},
	models.CollectionUsers: {
		Collection:     models.CollectionUsers,
		DefaultSheet:   models.SheetUsers,
		Headers:        UserHeaders,
		KeyHeader:      "Email",
		LegacyKeyIndex: 1,
		Rules: []FieldRule{
			{Match: "verified", Field: "emailVerified", Kind: KindBool},
			{Match: "registration", Field: "registrationDone", Kind: KindBool},
			{Match: "payment", Field: "paymentDone", Kind: KindBool},
		},
	},
	models.CollectionForms: {
		Collection:     models.CollectionForms,
		DefaultSheet:   models.SheetRegistrations,
		Headers:        RegistrationHeaders,
		KeyHeader:      "Form ID",
		LegacyKeyIndex: 0,
		Rules: []FieldRule{
			{Match: "status", Field: "status", Kind: KindString},
		},
	},
}

// LayoutFor returns the ledger layout of a collection
func LayoutFor(collection string) (Layout, bool) {
	l, ok := layouts[collection]
	return l, ok
}

// Sheet resolves the target tab, preferring an explicit name
func (l Layout) Sheet(explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	return l.DefaultSheet
}

// KeyIndex locates the key column by header name. Ledgers whose header row is
// missing or renamed fall back to the legacy fixed position
func (l Layout) KeyIndex(header []any) int {
	want := encoding.NormalizeHeader(l.KeyHeader)
	for i, cell := range header {
		if encoding.NormalizeHeader(CellString(cell)) == want {
			return i
		}
	}
	return l.LegacyKeyIndex
}

// NormalizeKey canonicalizes a key cell so sheet and store values compare equal
func (l Layout) NormalizeKey(v any) string {
	s := CellString(v)
	if l.Collection == models.CollectionUsers {
		return encoding.NormalizeEmail(s)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// KeyIsID reports whether the key column carries store ids
func (l Layout) KeyIsID() bool {
	return l.Collection != models.CollectionUsers
}

// LastColumn is the A1 letter of the last header column
func (l Layout) LastColumn() string {
	return ColumnLetter(len(l.Headers) - 1)
}

// ColumnLetter converts a zero-based index into A1 notation (0 -> A, 26 -> AA)
func ColumnLetter(idx int) string {
	if idx < 0 {
		return "A"
	}
	var b []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// HeaderRow returns the header as a sheet row
func HeaderRow(headers []string) []any {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

// RowKey extracts the normalized key from a row produced by this layout's formatter
func (l Layout) RowKey(row []any) string {
	idx := l.KeyIndex(HeaderRow(l.Headers))
	if idx >= len(row) {
		return ""
	}
	return l.NormalizeKey(row[idx])
}
