package hostsim

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// AdjustRoutine is the per-pCPU adjust-and-pause routine of spec.md §4.6, called once per
// pool pCPU by DispatchAdjustAndPause. designated is true for the coordinator-designated
// pCPU (conventionally the lowest in the pool), which alone publishes the scratch
// topology between the two barriers.
type AdjustRoutine func(pcpu int, designated bool) error

// DispatchAdjustAndPause fans AdjustRoutine out over one goroutine per pCPU in
// [0,poolSize), standing in for the host's cross-CPU call primitive (spec.md §1 names
// this out of scope; this is the simulated substitute named in SPEC_FULL.md §4.6). The
// lowest-numbered pCPU is the designated one. Returns the first error from any
// participant, if any; errgroup.Group cancels the shared context on first error, but
// AdjustRoutine implementations cooperate with the Barrier's own deadline rather than
// ctx cancellation, since the real per-pCPU routine cannot be interrupted mid-spin.
func DispatchAdjustAndPause(ctx context.Context, poolSize int, routine AdjustRoutine) error {
	if poolSize <= 0 {
		return fmt.Errorf("hostsim: pool size must be positive, got %d", poolSize)
	}
	g, _ := errgroup.WithContext(ctx)
	for p := 0; p < poolSize; p++ {
		pcpu := p
		g.Go(func() error {
			return routine(pcpu, pcpu == 0)
		})
	}
	return g.Wait()
}

// Deadline returns the time by which a spin started at start must complete, given the
// configured upper bound: (½ × upper bound) per spec.md §4.6/§5.
func Deadline(start time.Time, adjustUpperBoundNS int64) time.Time {
	return start.Add(time.Duration(adjustUpperBoundNS/2) * time.Nanosecond)
}
