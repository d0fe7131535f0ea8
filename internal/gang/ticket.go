// Package gang holds the scheduler core's data model: tickets, domain records, and
// policy specifications (components A and B of spec.md §2), shared by the queue,
// topology, sched, admission, and reconfig packages.
package gang

import "math"

// Infinity is the absolute-time/duration sentinel used throughout the scheduler for
// "never" (a permanent domain's deadline and remaining time, an unset activation time).
const Infinity int64 = math.MaxInt64

// VCPUID identifies a vCPU, unique within its owning domain's mask-relative indexing.
type VCPUID struct {
	Domain DomainID
	Index  int
}

// TicketFlags are per-ticket bits consulted by the dispatcher and advance().
type TicketFlags uint8

const (
	// FlagSingleVCPUYield marks a ticket whose vCPU voluntarily yielded its slice early
	// (e.g. HLT/idle) and is eligible for space-filling substitution on next dispatch.
	FlagSingleVCPUYield TicketFlags = 1 << iota
	// FlagSleeping marks a vCPU parked in a blocked state. The dispatcher's space-filling
	// substitute search does not consult it.
	FlagSleeping
	// FlagWasWaitingForEvent records that this ticket most recently resided in the
	// waiting-for-event set, for diagnostics only.
	FlagWasWaitingForEvent
)

func (f TicketFlags) has(bit TicketFlags) bool { return f&bit != 0 }

// Location names the single container a ticket may reside in at any instant
// (spec.md §3 invariant: "a ticket's location is uniquely determined and observable").
type Location uint8

const (
	LocationNone Location = iota
	LocationEDFQueue
	LocationActivationQueue
	LocationWaitingSet
	LocationDispatched
)

func (l Location) String() string {
	switch l {
	case LocationEDFQueue:
		return "edf-queue"
	case LocationActivationQueue:
		return "activation-queue"
	case LocationWaitingSet:
		return "waiting-set"
	case LocationDispatched:
		return "dispatched"
	default:
		return "none"
	}
}

// Ticket is the per-vCPU scheduling record (component A). Exactly one of the EDF queue,
// the activation queue, the waiting-for-event set, or the dispatched slots owns a given
// ticket at any time; Location reports which.
type Ticket struct {
	VCPU   VCPUID
	Domain *Domain

	EarliestStartTime int64
	Deadline          int64
	RemainingTime     int64
	ActivatedAt       int64

	Flags      TicketFlags
	OnBehalfOf *Ticket

	// ForceIdle is set by the dispatcher's yield-substitution step when this ticket
	// yielded its slice (spec.md §4.5 step 5) but no space-filling substitute could be
	// found. It is distinct from "OnBehalfOf == nil", which also describes a ticket that
	// never yielded at all and must still be dispatched normally.
	ForceIdle bool

	Location Location

	// QueueIndex is managed by whichever container.heap-backed queue currently holds
	// this ticket (mirrors the convention from container/heap's documented examples);
	// it is meaningless outside of EDFQueue/ActivationQueue membership.
	QueueIndex int

	// Generation is bumped by the reconfiguration coordinator on every local-scheduler
	// rebuild; used only for debug logging/tracing, never for correctness decisions.
	Generation uint64
}

// NewTicket allocates a ticket for the given vCPU of the given domain, unlocated
// (Location is LocationNone until a container's Insert places it).
func NewTicket(vcpu VCPUID, d *Domain) *Ticket {
	return &Ticket{
		VCPU:              vcpu,
		Domain:            d,
		EarliestStartTime: 0,
		Deadline:          Infinity,
		RemainingTime:     Infinity,
		ActivatedAt:       Infinity,
		QueueIndex:        -1,
	}
}

// SetYield sets or clears the single-vCPU-yield bit.
func (t *Ticket) SetYield(on bool) {
	if on {
		t.Flags |= FlagSingleVCPUYield
	} else {
		t.Flags &^= FlagSingleVCPUYield
	}
}

// Yielding reports whether the single-vCPU-yield bit is set.
func (t *Ticket) Yielding() bool { return t.Flags.has(FlagSingleVCPUYield) }

// SetSleeping sets or clears the sleeping bit.
func (t *Ticket) SetSleeping(on bool) {
	if on {
		t.Flags |= FlagSleeping
	} else {
		t.Flags &^= FlagSleeping
	}
}

// Sleeping reports whether the vCPU is parked in a blocked state.
func (t *Ticket) Sleeping() bool { return t.Flags.has(FlagSleeping) }
