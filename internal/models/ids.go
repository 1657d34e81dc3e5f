package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseID converts an external 24-hex string into a store id. Invalid strings
// never reach the store
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// IsValidID reports whether s is a well-formed store id
func IsValidID(s string) bool {
	return primitive.IsValidObjectID(strings.TrimSpace(s))
}

// HexOrEmpty renders an id, mapping the zero id to ""
func HexOrEmpty(id primitive.ObjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}
