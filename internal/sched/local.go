// Package sched implements the local scheduling engine (component F) and the
// dispatcher (component H) of spec.md §4.3/§4.5: the two time-ordered priority queues
// plus the waiting set that drive dispatch decisions on every scheduling tick, and the
// per-tick decision procedure that enforces the gang property.
package sched

import (
	"github.com/sirupsen/logrus"

	"github.com/gangsched/gangsched/internal/config"
	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
	"github.com/gangsched/gangsched/internal/queue"
	"github.com/gangsched/gangsched/internal/topology"
)

// Margin and MinNegativeDiff mirror spec.md §4.5's "MARGIN (≈ 10 µs)" and
// "MIN_NEGATIVE_DIFF (≈ −10 µs)".
const (
	Margin         int64 = 10_000
	MinNegativeDiff int64 = 10_000
)

// Local is the local scheduling engine for one cohort (spec.md §4.3 names this "one per
// pCPU"; within a cohort every member pCPU's local scheduler must hold an identical
// view by construction, so this implementation stores that one view once per cohort
// rather than N bit-identical copies — see DESIGN.md for the rationale). Dispatch calls
// from any member pCPU of the cohort observe and advance this same state.
type Local struct {
	Cohort     int
	CohortMask pcpuset.Set

	EDF        *queue.EDFQueue
	Activation *queue.ActivationQueue
	Waiting    *queue.WaitingSet

	// CurrentTicket is indexed by global pCPU id; only slots within CohortMask are
	// ever non-nil (spec.md §4.3: "non-cohort slots remain null").
	CurrentTicket []*gang.Ticket

	// previousTicket snapshots CurrentTicket from the prior tick, used by the
	// yielded-current substitution check (spec.md §4.5 step 5).
	previousTicket []*gang.Ticket

	Topology topology.Topology
	Cfg      config.Config

	lastTick    int64
	tickValid   bool
	sliceEndAbs int64
}

// NewLocal allocates an empty local scheduler for the given cohort.
func NewLocal(cohort int, mask pcpuset.Set, poolSize int, top topology.Topology, cfg config.Config) *Local {
	return &Local{
		Cohort:         cohort,
		CohortMask:     mask,
		EDF:            queue.NewEDFQueue(),
		Activation:     queue.NewActivationQueue(),
		Waiting:        queue.NewWaitingSet(),
		CurrentTicket:  make([]*gang.Ticket, poolSize),
		previousTicket: make([]*gang.Ticket, poolSize),
		Topology:       top,
		Cfg:            cfg,
		lastTick:       -1,
	}
}

// Insert places t into the waiting-for-event set by default, per spec.md §4.3
// ("insert(ticket) — into E by default on pool join").
func (l *Local) Insert(t *gang.Ticket) {
	l.Waiting.Insert(t)
}

// Remove locates the ticket for vcpu in C, D, or E (exactly one) and excises it.
// Fatal if the ticket is found in none of the three (spec.md §4.3 "Errors").
func (l *Local) Remove(vcpu gang.VCPUID) *gang.Ticket {
	if t, ok := l.EDF.SearchByDomainID(vcpu.Domain); ok {
		_ = l.EDF.RemoveByRef(t)
		return t
	}
	if t, ok := l.Activation.SearchByDomainID(vcpu.Domain); ok {
		_ = l.Activation.RemoveByRef(t)
		return t
	}
	if t, ok := l.Waiting.Lookup(vcpu.Domain); ok {
		l.Waiting.Remove(vcpu.Domain)
		return t
	}
	gang.Fatalf(logrus.Fields{"domain": vcpu.Domain, "cohort": l.Cohort}, "ticket not found in EDF queue, activation queue, or waiting set")
	return nil
}

// Advance updates times on all currently dispatched tickets, migrates activated
// tickets from the activation queue into the EDF queue, and returns the earliest
// upcoming activation time (gang.Infinity if the activation queue is empty).
func (l *Local) Advance(now int64) int64 {
	seen := make(map[*gang.Ticket]bool)
	for _, t := range l.CurrentTicket {
		if t == nil || seen[t] {
			continue
		}
		seen[t] = true
		l.advanceOne(t, now)
	}

	for {
		head := l.Activation.Peek()
		if head == nil || head.EarliestStartTime > now {
			break
		}
		_ = l.Activation.RemoveByRef(head)
		l.EDF.Insert(head)
	}

	if head := l.Activation.Peek(); head != nil {
		return head.EarliestStartTime
	}
	return gang.Infinity
}

func (l *Local) advanceOne(t *gang.Ticket, now int64) {
	if t.Domain.Policy.Kind == gang.PolicyPermanent {
		return // remains INFINITY, unchanged (spec.md §4.5 table)
	}

	delta := now - t.ActivatedAt
	if delta < -MinNegativeDiff {
		gang.Fatalf(logrus.Fields{"domain": t.Domain.ID, "now": now, "activated_at": t.ActivatedAt}, "clock moved backwards beyond MIN_NEGATIVE_DIFF")
	}
	if delta < 0 {
		delta = 0
	}
	t.RemainingTime -= delta

	if t.RemainingTime >= Margin {
		return
	}

	switch t.Domain.Policy.Kind {
	case gang.PolicyTimeTriggered:
		t.EarliestStartTime += t.Domain.Policy.Period
		t.Deadline += t.Domain.Policy.Period
		t.RemainingTime = t.Domain.Policy.Active
	case gang.PolicyEventTriggered:
		t.EarliestStartTime = l.Cfg.FloorToGrain(now)
		t.Deadline += t.Domain.Policy.Period
		t.RemainingTime = t.Domain.Policy.Active
	case gang.PolicyBestEffort:
		beCount := int64(1)
		if t.Domain.Cohort >= 0 && t.Domain.Cohort < len(l.Topology.BEDomsInCohort) {
			beCount = int64(l.Topology.BEDomsInCohort[t.Domain.Cohort])
			if beCount == 0 {
				beCount = 1
			}
		}
		t.EarliestStartTime = l.Cfg.FloorToGrain(now)
		t.Deadline += beCount * l.Cfg.BEPeriodNS
		t.RemainingTime = l.Cfg.BEQuantum()
	}

	l.Activation.Insert(t)
}
