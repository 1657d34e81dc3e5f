package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsWithinBounds(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 2.0)

	for i := 0; i < 10; i++ {
		wait := b.Next()
		assert.GreaterOrEqual(t, wait, 100*time.Millisecond)
		assert.LessOrEqual(t, wait, time.Second)
	}
	assert.Equal(t, 10, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.LessOrEqual(t, b.Next(), 120*time.Millisecond)
}

func TestBackoffWaitStopsOnCancel(t *testing.T) {
	b := NewBackoff(time.Minute, time.Hour, 2.0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, b.Wait(ctx))
}
