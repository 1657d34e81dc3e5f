package mapper

import (
	"strings"

	"github.com/Guizzs26/go-sync-sheets/pkg/encoding"
)

// ParseRow builds the store update for one data row. Only headers matched by
// the layout's allow-list contribute; empty or unparseable cells are dropped.
// An empty map means the row carries nothing to write
func ParseRow(l Layout, header, row []any) map[string]any {
	update := make(map[string]any)
	for i, h := range header {
		if i >= len(row) {
			break
		}
		rule, ok := l.ruleFor(CellString(h))
		if !ok {
			continue
		}
		if _, taken := update[rule.Field]; taken {
			continue
		}
		raw := CellString(row[i])
		if raw == "" {
			continue
		}
		switch rule.Kind {
		case KindBool:
			b, ok := ParseBool(raw)
			if !ok {
				continue
			}
			update[rule.Field] = b
		default:
			update[rule.Field] = raw
		}
	}
	return update
}

// AllowedFields lists the store fields the reverse path may ever write
func (l Layout) AllowedFields() []string {
	out := make([]string, 0, len(l.Rules))
	for _, r := range l.Rules {
		out = append(out, r.Field)
	}
	return out
}

func (l Layout) ruleFor(header string) (FieldRule, bool) {
	h := encoding.NormalizeHeader(header)
	if h == "" {
		return FieldRule{}, false
	}
	// the key column is never written back
	if h == encoding.NormalizeHeader(l.KeyHeader) {
		return FieldRule{}, false
	}
	for _, r := range l.Rules {
		if strings.Contains(h, r.Match) {
			return r, true
		}
	}
	return FieldRule{}, false
}

// ParseBool accepts the spellings admins type into checkbox-like columns
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "done", "sent", "✓", "✔":
		return true, true
	case "false", "no", "n", "0", "pending", "✗", "✘":
		return false, true
	}
	return false, false
}
