package synclock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerCompareAndSet(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	ok, err := l.TryAcquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryAcquire(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail fast")

	held, err := l.Held(ctx, 1)
	require.NoError(t, err)
	assert.True(t, held)

	// A different integration is independent.
	ok, err = l.TryAcquire(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, 1))
	held, err = l.Held(ctx, 1)
	require.NoError(t, err)
	assert.False(t, held)

	ok, err = l.TryAcquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerConcurrentAcquire(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	const goroutines = 32
	var winners atomic.Int32
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			ok, err := l.TryAcquire(ctx, 7)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one goroutine may win the marker")
}
