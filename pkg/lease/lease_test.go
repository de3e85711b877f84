package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireFailsWhenBusyAndNotWaiting(t *testing.T) {
	c := New()
	l, err := c.Acquire(context.Background(), "orchestrator", Options{})
	require.NoError(t, err)
	defer l.Release()

	_, err = c.Acquire(context.Background(), "orchestrator", Options{})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestAcquireWaitsForRelease(t *testing.T) {
	c := New()
	l, err := c.Acquire(context.Background(), "orchestrator", Options{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		l2, err := c.Acquire(context.Background(), "orchestrator", Options{Wait: true})
		require.NoError(t, err)
		l2.Release()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	l.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiting acquire never completed")
	}
}

func TestWithLeaseRunsFnAndReleases(t *testing.T) {
	c := New()
	ran := false
	err := c.WithLease(context.Background(), "orchestrator", Options{}, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// lease must be free again after WithLease returns
	_, err = c.Acquire(context.Background(), "orchestrator", Options{})
	assert.NoError(t, err)
}

func TestDistinctKeysDoNotContend(t *testing.T) {
	c := New()
	l1, err := c.Acquire(context.Background(), "a", Options{})
	require.NoError(t, err)
	defer l1.Release()

	l2, err := c.Acquire(context.Background(), "b", Options{})
	require.NoError(t, err)
	defer l2.Release()
}
