package gang

import "fmt"

// PolicyKind is the tag of the PolicySpec closed sum (spec.md §6).
//
// Represented as a closed tagged sum rather than an interface with per-kind
// implementations: time-update sites pattern-match on Kind via a type switch-like
// dispatch (see sched.Advance), keeping the dispatcher's hot path branch-friendly
// instead of routing through a vtable (spec.md §9 "Polymorphism over policies").
type PolicyKind uint8

const (
	PolicyNone PolicyKind = iota
	PolicyPermanent
	PolicyTimeTriggered
	PolicyEventTriggered
	PolicyBestEffort
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyPermanent:
		return "permanent"
	case PolicyTimeTriggered:
		return "time-triggered"
	case PolicyEventTriggered:
		return "event-triggered"
	case PolicyBestEffort:
		return "best-effort"
	default:
		return "none"
	}
}

// PolicySpec is the tagged variant carried by a domain record and by PUT request entries.
// Only the fields relevant to Kind are meaningful; constructors populate the rest with
// zero values.
type PolicySpec struct {
	Kind PolicyKind

	From      int64 // from_ns, all kinds except None
	Period    int64 // period_ns, TimeTriggered/EventTriggered
	Active    int64 // active_ns, TimeTriggered/EventTriggered
	Weight    uint16
	SpaceFill bool
}

// NewPermanent builds a Permanent policy spec. Always permitted (spec.md §6).
func NewPermanent(fromNS int64) PolicySpec {
	return PolicySpec{Kind: PolicyPermanent, From: fromNS}
}

// NewTimeTriggered builds and validates a TimeTrig policy spec against grain.
// Requires grain <= active < period < Infinity.
func NewTimeTriggered(fromNS, periodNS, activeNS int64, spaceFill bool, grain int64) (PolicySpec, error) {
	if err := validatePeriodic(grain, periodNS, activeNS); err != nil {
		return PolicySpec{}, err
	}
	return PolicySpec{Kind: PolicyTimeTriggered, From: fromNS, Period: periodNS, Active: activeNS, SpaceFill: spaceFill}, nil
}

// NewEventTriggered builds and validates an EventTrig policy spec against grain.
// Same bounds as TimeTriggered.
func NewEventTriggered(fromNS, periodNS, activeNS int64, spaceFill bool, grain int64) (PolicySpec, error) {
	if err := validatePeriodic(grain, periodNS, activeNS); err != nil {
		return PolicySpec{}, err
	}
	return PolicySpec{Kind: PolicyEventTriggered, From: fromNS, Period: periodNS, Active: activeNS, SpaceFill: spaceFill}, nil
}

// NewBestEffort builds and validates a BestEffort policy spec. Weight is presently
// advisory (spec.md §6) but must still fall in [1, 65535].
func NewBestEffort(fromNS int64, weight uint16, spaceFill bool) (PolicySpec, error) {
	if weight < 1 {
		return PolicySpec{}, fmt.Errorf("best-effort weight must be in [1,65535], got %d", weight)
	}
	return PolicySpec{Kind: PolicyBestEffort, From: fromNS, Weight: weight, SpaceFill: spaceFill}, nil
}

func validatePeriodic(grain, period, active int64) error {
	if period >= Infinity {
		return fmt.Errorf("period must be finite, got %d", period)
	}
	if active < grain {
		return fmt.Errorf("active (%d) must be >= grain (%d)", active, grain)
	}
	if active >= period {
		return fmt.Errorf("active (%d) must be < period (%d)", active, period)
	}
	return nil
}

// Utilisation returns the per-pCPU utilisation this policy contributes, used by the
// admission validator (component J). BestEffort's contribution is the pool-wide reserve
// fraction, passed in by the caller since it is not a property of the policy itself.
func (p PolicySpec) Utilisation(beReserveFraction float64) float64 {
	switch p.Kind {
	case PolicyPermanent:
		return 1.0
	case PolicyTimeTriggered, PolicyEventTriggered:
		if p.Period == 0 {
			return 0
		}
		return float64(p.Active) / float64(p.Period)
	case PolicyBestEffort:
		return beReserveFraction
	default:
		return 0
	}
}
