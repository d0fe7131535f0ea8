// Package hostsim stands in for the out-of-scope host primitives named in spec.md §1/§5:
// cross-CPU function calls and the spinning barrier/paused-counter pair that the
// reconfiguration coordinator (internal/reconfig) drives. A real hypervisor host would
// dispatch the adjust-and-pause routine onto each pCPU via an actual cross-CPU call and
// spin a hardware-visible counter; here one goroutine stands in for each pool pCPU and
// the counter is an atomic.Int32, grounded in the teacher's worker-goroutine-per-resource
// pattern (sim/cluster/simulator.go's per-replica goroutines) fanned out with
// golang.org/x/sync/errgroup.
package hostsim

import (
	"sync"
	"sync/atomic"
	"time"
)

// PollInterval is the back-off between reads of the paused counter while spinning,
// mirroring spec.md §5's "≥ 20 µs back-off".
const PollInterval = 20 * time.Microsecond

// Barrier is a reusable two-phase counting barrier over an atomic paused-count, modeling
// spec.md §4.6's pair of barriers (paused-count ≥ |pool| then ≥ 2×|pool|) without a real
// cross-CPU primitive: every participant increments the same counter and spins until it
// crosses its own threshold.
type Barrier struct {
	pauseCount atomic.Int32
	pool       int

	mu   sync.Mutex
	flag map[int]bool // per-pCPU pause flag cleared by the coordinator
}

// NewBarrier returns a barrier sized for pool participants.
func NewBarrier(pool int) *Barrier {
	return &Barrier{
		pool: pool,
		flag: make(map[int]bool, pool),
	}
}

// Reset clears the global paused-count and (re)arms every per-pCPU pause flag to the
// paused state (spec.md §4.6 step 5, "Clear per-pCPU ack/pause flags and the global
// paused-count" — "clear" here means arm for the next round, matching the per-pCPU
// routine's own ack=1 at entry).
func (b *Barrier) Reset() {
	b.pauseCount.Store(0)
	b.mu.Lock()
	for p := 0; p < b.pool; p++ {
		b.flag[p] = true
	}
	b.mu.Unlock()
}

// ArriveAndAwait increments the paused-count and spins, with PollInterval back-off, until
// it reaches threshold or deadline passes. Returns false on timeout (a "timing
// degradation", spec.md §7 — logged by the caller, never fatal).
func (b *Barrier) ArriveAndAwait(threshold int32, deadline time.Time) bool {
	b.pauseCount.Add(1)
	for {
		if b.pauseCount.Load() >= threshold {
			return true
		}
		if time.Now().After(deadline) {
			return b.pauseCount.Load() >= threshold
		}
		time.Sleep(PollInterval)
	}
}

// AwaitCount spins, without incrementing the counter itself, until the paused-count
// reaches threshold or deadline passes — the coordinator's own bookkeeping wait
// (spec.md §4.6 step 5's "busy-wait ... for the global paused-count to reach 2×|pool|"),
// distinct from a participant's ArriveAndAwait which also increments.
func (b *Barrier) AwaitCount(threshold int32, deadline time.Time) bool {
	for {
		if b.pauseCount.Load() >= threshold {
			return true
		}
		if time.Now().After(deadline) {
			return b.pauseCount.Load() >= threshold
		}
		time.Sleep(PollInterval)
	}
}

// AwaitDrain spins until the paused-count returns to zero or deadline passes, mirroring
// the coordinator's post-Barrier-2 drain wait.
func (b *Barrier) AwaitDrain(deadline time.Time) bool {
	for {
		if b.pauseCount.Load() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return b.pauseCount.Load() == 0
		}
		time.Sleep(PollInterval)
	}
}

// Leave subtracts 2 from the paused-count, matching the per-pCPU routine's final step.
func (b *Barrier) Leave() {
	b.pauseCount.Add(-2)
}

// ClearPauseFlag releases pcpu's individual pause flag, letting its adjust-and-pause
// routine proceed past the final spin.
func (b *Barrier) ClearPauseFlag(pcpu int) {
	b.mu.Lock()
	b.flag[pcpu] = false
	b.mu.Unlock()
}

// WaitPauseFlagCleared spins on pcpu's own pause flag.
func (b *Barrier) WaitPauseFlagCleared(pcpu int, deadline time.Time) bool {
	for {
		b.mu.Lock()
		cleared := !b.flag[pcpu]
		b.mu.Unlock()
		if cleared {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(PollInterval)
	}
}
