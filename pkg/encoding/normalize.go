package encoding

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail returns the canonical form used as the user identity on both
// sync directions: NFKC, trimmed and case folded
func NormalizeEmail(email string) string {
	if email == "" {
		return ""
	}
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(email)))
}

// NormalizeHeader folds a sheet header so allow-list rules can match on
// substrings regardless of casing or stray whitespace typed in the ledger
func NormalizeHeader(header string) string {
	folded := cases.Fold().String(norm.NFKC.String(header))
	return strings.Join(strings.Fields(folded), " ")
}

// EqualEmail reports whether two addresses identify the same user
func EqualEmail(a, b string) bool {
	na := NormalizeEmail(a)
	return na != "" && na == NormalizeEmail(b)
}
