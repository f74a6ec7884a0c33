package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMap_PreservesInputOrder(t *testing.T) {
	p := New(4)
	items := []int{5, 1, 4, 2, 3}

	res := Map(context.Background(), p, items, func(_ context.Context, n int) (int, error) {
		// Later items finish first.
		time.Sleep(time.Duration(6-n) * time.Millisecond)
		return n * 10, nil
	})

	require.Len(t, res, len(items))
	for i, n := range items {
		require.NoError(t, res[i].Err)
		assert.Equal(t, n*10, res[i].Value)
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	p := New(3, WithQueueSize(1))
	var inFlight, peak atomic.Int32

	items := make([]int, 20)
	Map(context.Background(), p, items, func(context.Context, int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 3, p.Workers())
}

func TestMap_PartialFailureDoesNotAbort(t *testing.T) {
	p := New(2)
	errBoom := errors.New("boom")

	res := Map(context.Background(), p, []string{"a", "fail", "c"}, func(_ context.Context, s string) (string, error) {
		if s == "fail" {
			return "", errBoom
		}
		return s + "!", nil
	})

	assert.Equal(t, "a!", res[0].Value)
	assert.ErrorIs(t, res[1].Err, errBoom)
	assert.Equal(t, "c!", res[2].Value)
}

func TestMap_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	res := Map(ctx, New(2), []int{1, 2, 3}, func(context.Context, int) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	assert.Zero(t, calls.Load())
	for _, r := range res {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestMap_SharedLimiter(t *testing.T) {
	limiter := rate.NewLimiter(200, 1)
	a, b := New(4, WithLimiter(limiter)), New(4, WithLimiter(limiter))

	start := time.Now()
	done := make(chan []Result[int], 2)
	for _, p := range []*Pool{a, b} {
		go func() {
			done <- Map(context.Background(), p, make([]int, 3), func(context.Context, int) (int, error) {
				return 1, nil
			})
		}()
	}
	for range 2 {
		for _, r := range <-done {
			require.NoError(t, r.Err)
		}
	}
	// 6 starts share one 200/s bucket with burst 1, so at least ~25ms.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMap_NilLimiter(t *testing.T) {
	res := Map(context.Background(), New(2, WithLimiter(nil)), []int{1, 2}, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	assert.Equal(t, 2, res[1].Value)
}

func TestMap_Empty(t *testing.T) {
	res := Map(context.Background(), New(1), []int(nil), func(context.Context, int) (int, error) {
		t.Fatal("should not run")
		return 0, nil
	})
	assert.Empty(t, res)
}
