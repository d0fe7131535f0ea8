package reconfig

import "github.com/gangsched/gangsched/internal/gang"

// align returns the smallest v >= start such that v ≡ from (mod period), per spec.md
// §4.6 footnote 1. period must be positive.
func align(start, from, period int64) int64 {
	if period <= 0 {
		return start
	}
	return from + ceilDiv(start-from, period)*period
}

// ceilDiv computes ceil(a/b) for any sign of a, with b != 0, since Go's "/" truncates
// toward zero rather than flooring.
func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}

// initTicket fills in a freshly allocated ticket's earliest_start_time/deadline/
// remaining_time per spec.md §4.6's "Resulting ticket initialisation" table. beOrdinal
// is this ticket's 1-based position among its cohort's best-effort domains in
// domain-id order ("k-th BE in cohort"); it is ignored for other policies.
func initTicket(t *gang.Ticket, willResumeAt int64, bePeriodNS, beQuantumNS int64, beOrdinal int) {
	p := t.Domain.Policy
	switch p.Kind {
	case gang.PolicyPermanent:
		est := p.From
		if willResumeAt > est {
			est = willResumeAt
		}
		t.EarliestStartTime = est
		t.Deadline = gang.Infinity
		t.RemainingTime = gang.Infinity
		t.ActivatedAt = willResumeAt

	case gang.PolicyTimeTriggered, gang.PolicyEventTriggered:
		est := align(willResumeAt, p.From, p.Period)
		t.EarliestStartTime = est
		t.Deadline = est + p.Period
		t.RemainingTime = p.Active
		t.ActivatedAt = willResumeAt

	case gang.PolicyBestEffort:
		est := align(willResumeAt, p.From, bePeriodNS)
		t.EarliestStartTime = est
		t.Deadline = est + int64(beOrdinal)*bePeriodNS
		t.RemainingTime = beQuantumNS
		t.ActivatedAt = willResumeAt
	}
}
