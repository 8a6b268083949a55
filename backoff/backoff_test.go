package backoff

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	var calls int32
	op := func() (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}

	got, err := Retry(context.Background(), op, time.Millisecond, 5)

	assert.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 3, calls)
}

func TestRetry_ExhaustsMaxTries(t *testing.T) {
	var calls int32
	op := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("always fails")
	}

	_, err := Retry(context.Background(), op, time.Millisecond, 3)

	assert.Error(t, err)
	assert.EqualValues(t, 3, calls)
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	var calls int32
	sentinel := errors.New("do not retry this")
	op := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", Permanent(sentinel)
	}

	_, err := Retry(context.Background(), op, time.Millisecond, 5)

	assert.ErrorIs(t, err, sentinel)
	assert.EqualValues(t, 1, calls)
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := func() (string, error) {
		return "", errors.New("transient")
	}

	_, err := Retry(ctx, op, time.Millisecond, 0)

	assert.Error(t, err)
}
