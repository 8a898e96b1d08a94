// Package parallel splits index ranges across a fixed number of workers.
//
// Work is partitioned into contiguous, disjoint ranges so that every worker
// can own an exclusive sub-slice of a shared output buffer. No locking is
// needed on the buffer itself.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Range is the half-open index interval [Start, End) handled by one worker
type Range struct {
	Worker int
	Start  int
	End    int
}

// Len is the number of indices in the range
func (r Range) Len() int {
	return r.End - r.Start
}

// DefaultWorkers is the available CPU parallelism
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// Partition divides [0, n) into at most workers contiguous chunks of
// ceil(n/workers) indices each. Empty trailing chunks are dropped.
func Partition(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	chunk := (n + workers - 1) / workers

	ranges := make([]Range, 0, workers)
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := min(start+chunk, n)
		ranges = append(ranges, Range{Worker: w, Start: start, End: end})
	}
	return ranges
}

// ForEachRange runs fn once per partition of [0, n), each in its own
// goroutine, and waits for all of them. The first error cancels the shared
// context and is returned once every worker has stopped.
func ForEachRange(ctx context.Context, n, workers int, fn func(ctx context.Context, r Range) error) error {
	ranges := Partition(n, workers)
	if len(ranges) == 0 {
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, r)
		})
	}
	return g.Wait()
}
