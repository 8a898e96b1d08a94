package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionCoversRangeDisjointly(t *testing.T) {
	for _, tc := range []struct {
		n, workers int
	}{
		{10, 1}, {10, 3}, {10, 4}, {10, 10}, {10, 16}, {1, 8}, {97, 8},
	} {
		ranges := Partition(tc.n, tc.workers)
		require.NotEmpty(t, ranges)
		assert.LessOrEqual(t, len(ranges), tc.workers)

		next := 0
		for _, r := range ranges {
			assert.Equal(t, next, r.Start, "n=%d workers=%d", tc.n, tc.workers)
			assert.Greater(t, r.Len(), 0)
			next = r.End
		}
		assert.Equal(t, tc.n, next, "n=%d workers=%d", tc.n, tc.workers)
	}
}

func TestPartitionChunkSize(t *testing.T) {
	// ceil(10/4) = 3 -> [0,3) [3,6) [6,9) [9,10)
	ranges := Partition(10, 4)
	require.Len(t, ranges, 4)
	assert.Equal(t, Range{Worker: 3, Start: 9, End: 10}, ranges[3])

	// ceil(10/8) = 2 -> only five non-empty chunks
	assert.Len(t, Partition(10, 8), 5)
}

func TestPartitionEmpty(t *testing.T) {
	assert.Nil(t, Partition(0, 4))
	assert.NotEmpty(t, Partition(5, 0))
}

func TestForEachRangeWritesDisjointSlices(t *testing.T) {
	out := make([]int, 1000)
	err := ForEachRange(context.Background(), len(out), 7, func(_ context.Context, r Range) error {
		part := out[r.Start:r.End]
		for i := range part {
			part[i] = r.Start + i
		}
		return nil
	})
	require.NoError(t, err)
	for i, v := range out {
		require.Equal(t, i, v)
	}
}

func TestForEachRangePropagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32

	err := ForEachRange(context.Background(), 100, 4, func(ctx context.Context, r Range) error {
		calls.Add(1)
		if r.Worker == 2 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, boom)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestForEachRangeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ForEachRange(ctx, 10, 2, func(context.Context, Range) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
