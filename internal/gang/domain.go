package gang

import (
	"fmt"

	"github.com/gangsched/gangsched/internal/pcpuset"
)

// DomainID uniquely identifies a domain. Must be positive.
type DomainID int32

// Domain is the per-domain record (component B). Mutated only by the reconfiguration
// coordinator; read by the topology engine and the dispatcher.
type Domain struct {
	ID     DomainID
	Mask   pcpuset.Set
	Policy PolicySpec

	// NumVCPUs equals max_vCPUs(domain) and must equal Mask.Weight() at all times
	// (spec.md §3: "mask ... size = |vCPUs|").
	NumVCPUs int

	// Cohort is -1 until the topology engine places this domain.
	Cohort int

	// MuxGroupMask is reserved for the mux-group optimisation layer. Mux-groups are
	// explicitly not required for correctness (spec.md §4.4) and are not computed by
	// this implementation; the field stays zero-valued (see SPEC_FULL.md §9).
	MuxGroupMask pcpuset.Set

	Generation uint64
}

// NewDomain constructs a Domain with an unplaced cohort.
func NewDomain(id DomainID, mask pcpuset.Set, policy PolicySpec) *Domain {
	return &Domain{
		ID:       id,
		Mask:     mask,
		Policy:   policy,
		NumVCPUs: mask.Weight(),
		Cohort:   -1,
	}
}

// ValidateAgainstPool checks the domain-independent structural invariants of spec.md §3/§6:
// the mask is non-empty, a subset of the pool, and its weight matches NumVCPUs.
func (d *Domain) ValidateAgainstPool(poolMask pcpuset.Set) error {
	if d.Mask.IsEmpty() {
		return &ValidationError{DomainID: d.ID, Reason: "pCPU mask must be non-empty"}
	}
	if !d.Mask.Subset(poolMask) {
		return &ValidationError{DomainID: d.ID, Reason: "pCPU mask is not a subset of the pool"}
	}
	if d.Mask.Weight() != d.NumVCPUs {
		return &ValidationError{DomainID: d.ID, Reason: fmt.Sprintf("mask weight %d does not match vCPU count %d", d.Mask.Weight(), d.NumVCPUs)}
	}
	if d.Policy.Kind == PolicyNone {
		return &ValidationError{DomainID: d.ID, Reason: "policy must not be None"}
	}
	return nil
}
