package sheets

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	assert.Equal(t, "'Finance'!D:D", Range("Finance", "D:D"))
	assert.Equal(t, "'Due Payments'", Range("Due Payments", ""))
	assert.Equal(t, "'Bob''s'!A1", Range("Bob's", "A1"))
}

func TestUnconfiguredClientFailsCleanly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(context.Background(), Config{SpreadsheetID: "x"}, logger)
	require.NoError(t, err)
	assert.False(t, c.Configured())

	ctx := context.Background()
	_, err = c.Get(ctx, "A1")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.Update(ctx, "A1", nil), ErrNotConfigured)
	assert.ErrorIs(t, c.Append(ctx, "A1", nil), ErrNotConfigured)
	assert.ErrorIs(t, c.Clear(ctx, "A1"), ErrNotConfigured)
	_, _, err = c.EnsureSheet(ctx, "Finance")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.BoldHeader(ctx, 0), ErrNotConfigured)
}
