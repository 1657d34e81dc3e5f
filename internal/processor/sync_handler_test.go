package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordHex = "64b7f0c2a1b2c3d4e5f60702"

type scriptedRunner struct {
	errs  []error
	calls int
}

func (s *scriptedRunner) Run(context.Context, models.SyncRequest) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func newHandler(r Runner) *SyncHandler {
	h := NewSyncHandler(r, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.retryDelay = time.Millisecond
	return h
}

func TestProcessMessage_Success(t *testing.T) {
	runner := &scriptedRunner{}

	err := newHandler(runner).ProcessMessage(context.Background(), models.NewSyncRequest(models.CollectionPayments, recordHex, ""))

	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
}

func TestProcessMessage_RejectsMalformedRequests(t *testing.T) {
	runner := &scriptedRunner{}
	h := newHandler(runner)

	err := h.ProcessMessage(context.Background(), models.NewSyncRequest("sessions", recordHex, ""))
	assert.ErrorIs(t, err, ErrFatal)

	err = h.ProcessMessage(context.Background(), models.NewSyncRequest(models.CollectionUsers, "abc", ""))
	assert.ErrorIs(t, err, ErrFatal)

	assert.Zero(t, runner.calls)
}

func TestProcessMessage_PermanentFailureIsFatal(t *testing.T) {
	runner := &scriptedRunner{errs: []error{&service.SyncError{Message: "record not found", Permanent: true}}}

	err := newHandler(runner).ProcessMessage(context.Background(), models.NewSyncRequest(models.CollectionUsers, recordHex, ""))

	assert.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, 1, runner.calls)
}

func TestProcessMessage_RetriesThrottling(t *testing.T) {
	throttled := errors.New("googleapi: Error 429: Quota exceeded")
	runner := &scriptedRunner{errs: []error{throttled, throttled}}

	err := newHandler(runner).ProcessMessage(context.Background(), models.NewSyncRequest(models.CollectionForms, recordHex, ""))

	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)
}

func TestProcessMessage_GivesUpAfterRetries(t *testing.T) {
	throttled := errors.New("rate limit")
	runner := &scriptedRunner{errs: []error{throttled, throttled, throttled, throttled}}

	err := newHandler(runner).ProcessMessage(context.Background(), models.NewSyncRequest(models.CollectionForms, recordHex, ""))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFatal)
	assert.Equal(t, 3, runner.calls)
}

func TestProcessMessage_TransientErrorIsReturnedForRequeue(t *testing.T) {
	runner := &scriptedRunner{errs: []error{errors.New("connection reset")}}

	err := newHandler(runner).ProcessMessage(context.Background(), models.NewSyncRequest(models.CollectionForms, recordHex, ""))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFatal)
	assert.Equal(t, 1, runner.calls)
}
