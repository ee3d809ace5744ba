package loading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Get("sync:default")
	assert.False(t, ok)
	assert.False(t, tr.AnyLoading())

	tr.Start("sync:default")
	assert.True(t, tr.IsLoading("sync:default"))
	assert.True(t, tr.AnyLoading())

	// A retry while still loading counts another attempt.
	tr.Start("sync:default")
	e, ok := tr.Get("sync:default")
	require.True(t, ok)
	assert.Equal(t, 2, e.Attempts)

	boom := errors.New("boom")
	tr.Finish("sync:default", boom)
	e, _ = tr.Get("sync:default")
	assert.Equal(t, StateFailed, e.State)
	assert.ErrorIs(t, e.Err, boom)
	assert.False(t, tr.AnyLoading())

	tr.Start("sync:default")
	tr.Finish("sync:default", nil)
	e, _ = tr.Get("sync:default")
	assert.Equal(t, StateDone, e.State)
	assert.Equal(t, 1, e.Attempts)
	assert.NoError(t, e.Err)

	tr.Start("body:x")
	keys := []string{}
	for _, e := range tr.Entries() {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"body:x", "sync:default"}, keys)

	tr.Clear("body:x")
	assert.Len(t, tr.Entries(), 1)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 5 * time.Second}
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 5*time.Second, b.Delay(4))
	assert.Equal(t, 5*time.Second, b.Delay(60))
}

func TestRetry(t *testing.T) {
	fast := Backoff{Initial: time.Millisecond, Max: time.Millisecond, MaxAttempts: 3}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fast, func(context.Context) error {
			calls++
			return errors.New("down")
		})
		assert.EqualError(t, err, "down")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		bad := errors.New("bad password")
		calls := 0
		err := Retry(context.Background(), fast, func(context.Context) error {
			calls++
			return Permanent(bad)
		})
		assert.ErrorIs(t, err, bad)
		assert.False(t, IsPermanent(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Backoff{Initial: time.Hour, MaxAttempts: 5}
		calls := 0
		err := Retry(ctx, slow, func(context.Context) error {
			calls++
			cancel()
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	assert.Nil(t, Permanent(nil))
}
