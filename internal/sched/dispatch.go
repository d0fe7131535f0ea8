package sched

import (
	"github.com/sirupsen/logrus"

	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
)

// Idle is the sentinel vCPU returned when a pCPU has nothing to run.
var Idle = gang.VCPUID{Domain: -1, Index: -1}

// Result is the dispatcher's per-tick decision for one pCPU (component H).
type Result struct {
	// VCPU is the selected vCPU, or Idle.
	VCPU gang.VCPUID
	// SliceNS is the length of the granted slice in ns, or -1 for an infinite
	// (permanent) slice.
	SliceNS int64
}

// Dispatch computes (or reuses, if already computed this tick by another member pCPU
// of the same cohort) the cohort-wide dispatch decision for now, and returns the result
// specific to pcpu (spec.md §4.5).
//
// taskletPending models a pending host tasklet local to pcpu (step 2): it is consulted
// per call since it is specific to the calling pCPU, not to the cohort's shared state.
func Dispatch(l *Local, pcpu int, now int64, taskletPending bool) Result {
	if !l.tickValid || now != l.lastTick {
		l.computeTick(now)
	}

	if taskletPending {
		return Result{VCPU: Idle, SliceNS: -1}
	}

	t := l.CurrentTicket[pcpu]
	sliceNS := int64(-1)
	if l.sliceEndAbs != gang.Infinity {
		sliceNS = l.sliceEndAbs - now
		if sliceNS < 0 {
			sliceNS = 0
		}
	}
	if t == nil || t.ForceIdle {
		return Result{VCPU: Idle, SliceNS: sliceNS}
	}
	if t.OnBehalfOf != nil {
		return Result{VCPU: t.OnBehalfOf.VCPU, SliceNS: sliceNS}
	}
	return Result{VCPU: t.VCPU, SliceNS: sliceNS}
}

// computeTick runs the full per-tick dispatch protocol of spec.md §4.5 steps 1, 3, 4,
// and 5, populating l.CurrentTicket and l.sliceEndAbs for every member pCPU of the
// cohort, and is idempotent for a given (l, now) pair within a tick.
//
// advance() (step 1) only reinserts tickets whose remaining_time has dropped below
// MARGIN; a ticket whose slice has not yet fully run stays in the dispatched state
// across ticks without ever re-entering the EDF queue, so step 3's "assigned_pcpus"
// mask starts from whatever is still validly dispatched, not empty, and the EDF-pop
// loop fills in only the pCPUs whose ticket just got reinitialized and requeued.
func (l *Local) computeTick(now int64) {
	earliestActivation := l.Advance(now)

	copy(l.previousTicket, l.CurrentTicket)
	newCurrent := make([]*gang.Ticket, len(l.CurrentTicket))

	assigned := pcpuset.New(l.CohortMask.Size())
	sliceEnd := gang.Infinity

	carriedOver := make(map[*gang.Ticket]bool)
	for _, t := range l.CurrentTicket {
		if t == nil || t.Location != gang.LocationDispatched || carriedOver[t] {
			continue
		}
		carriedOver[t] = true
		if t.Domain.Mask.Intersects(assigned) {
			continue
		}
		l.checkDispatchSanity(t)
		assigned = assigned.Union(t.Domain.Mask)
		t.Domain.Mask.ForEach(func(p int) { newCurrent[p] = t })
		t.ActivatedAt = now
		if t.RemainingTime != gang.Infinity {
			if candidate := now + t.RemainingTime; candidate < sliceEnd {
				sliceEnd = candidate
			}
		}
	}

	for l.EDF.Len() > 0 && !assigned.Equal(l.CohortMask) {
		t := l.EDF.RemoveMin()
		d := t.Domain

		l.checkDispatchSanity(t)

		if !d.Mask.Intersects(assigned) {
			assigned = assigned.Union(d.Mask)
			d.Mask.ForEach(func(p int) {
				newCurrent[p] = t
			})
			t.Location = gang.LocationDispatched
			t.ActivatedAt = now
			if t.RemainingTime != gang.Infinity {
				candidate := now + t.RemainingTime
				if candidate < sliceEnd {
					sliceEnd = candidate
				}
			}
		} else {
			l.Activation.Insert(t)
			if t.RemainingTime != gang.Infinity {
				candidate := t.Deadline - t.RemainingTime
				if candidate <= now {
					candidate = now + 1
				}
				if candidate < sliceEnd {
					sliceEnd = candidate
				}
			}
		}
	}

	l.checkPermanentExclusivity(newCurrent)
	l.CurrentTicket = newCurrent

	if earliestActivation < sliceEnd {
		sliceEnd = earliestActivation
	}
	if sliceEnd != gang.Infinity {
		sliceEnd = l.Cfg.FloorToGrain(sliceEnd)
		if sliceEnd < now {
			sliceEnd = now
		}
	}

	l.applyYieldSubstitution(now)

	l.sliceEndAbs = sliceEnd
	l.lastTick = now
	l.tickValid = true
}

// checkDispatchSanity enforces spec.md §4.5's per-ticket remaining-time rules.
func (l *Local) checkDispatchSanity(t *gang.Ticket) {
	if t.Domain.Policy.Kind == gang.PolicyPermanent {
		if t.RemainingTime != gang.Infinity {
			gang.Fatalf(logrus.Fields{"domain": t.Domain.ID}, "permanent ticket's remaining_time is not INFINITY")
		}
		return
	}
	if t.RemainingTime == gang.Infinity || t.RemainingTime < Margin {
		gang.Fatalf(logrus.Fields{"domain": t.Domain.ID, "remaining": t.RemainingTime}, "non-permanent ticket's remaining_time is not finite and >= MARGIN at dispatch")
	}
}

// checkPermanentExclusivity enforces spec.md §4.5's cohort-wide rule: if any permanent
// ticket is dispatched anywhere in the cohort, it must be the only ticket dispatched.
func (l *Local) checkPermanentExclusivity(current []*gang.Ticket) {
	distinct := make(map[*gang.Ticket]bool)
	hasPermanent := false
	l.CohortMask.ForEach(func(p int) {
		t := current[p]
		if t == nil {
			return
		}
		distinct[t] = true
		if t.Domain.Policy.Kind == gang.PolicyPermanent {
			hasPermanent = true
		}
	})
	if hasPermanent && len(distinct) > 1 {
		gang.Fatalf(logrus.Fields{"cohort": l.Cohort}, "permanent ticket dispatched alongside another ticket in the same cohort")
	}
}

// applyYieldSubstitution implements spec.md §4.5 step 5 (and its step 6 flag clear) for
// every pCPU in the cohort whose current ticket is unchanged from the previous tick and
// carries the single-vCPU-yield bit. A yielded ticket with no space-filling substitute
// forces its pCPU idle rather than redispatching the vCPU that just yielded (spec.md
// §4.5 step 5: "attempt a space-filling substitute; if none, pick idle").
func (l *Local) applyYieldSubstitution(now int64) {
	l.CohortMask.ForEach(func(p int) {
		cur := l.CurrentTicket[p]
		prev := l.previousTicket[p]
		if cur == nil || cur != prev || !cur.Yielding() {
			if cur != nil {
				cur.OnBehalfOf = nil
				cur.ForceIdle = false
			}
			return
		}
		if cur.Domain.Policy.Kind != gang.PolicyPermanent {
			if sub := l.findSpaceFillingSubstitute(cur); sub != nil {
				cur.OnBehalfOf = sub
				cur.ForceIdle = false
			} else {
				cur.OnBehalfOf = nil
				cur.ForceIdle = true
			}
		}
		cur.SetYield(false)
	})
}

// findSpaceFillingSubstitute looks in the EDF queue then the activation queue, scanning
// each in heap storage order (deterministic, but not sorted by deadline or start time),
// for a ticket belonging to a space-filling domain other than the one that yielded.
func (l *Local) findSpaceFillingSubstitute(yielded *gang.Ticket) *gang.Ticket {
	for _, t := range l.EDF.Items() {
		if t != yielded && t.Domain.Policy.SpaceFill {
			return t
		}
	}
	for _, t := range l.Activation.Items() {
		if t != yielded && t.Domain.Policy.SpaceFill {
			return t
		}
	}
	return nil
}
