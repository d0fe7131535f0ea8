package reconfig

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
)

// MaxDomainEntries bounds num_dom_entries (spec.md §6 "MAX_DOMAINS"); spec.md leaves the
// exact figure unspecified, so a generous round number is chosen here.
const MaxDomainEntries = 4096

// Entry is one domain's requested mask/policy, mirroring spec.md §6's request record
// entry shape (domid, cpumap, policy).
type Entry struct {
	DomainID gang.DomainID
	Mask     pcpuset.Set
	Policy   gang.PolicySpec
}

// PutRequest is the put command's request record (spec.md §6).
type PutRequest struct {
	PoolID  uint32
	Entries []Entry
}

// validate runs spec.md §4.6 step 1 against existing, the pool's currently committed
// domain set, and poolMask. Every independent problem across the whole request is
// collected via multierr rather than stopping at the first one, so a caller sees every
// bad entry in a single EINVAL report.
func validate(req PutRequest, existing map[gang.DomainID]*gang.Domain, poolMask pcpuset.Set, grain int64) error {
	var errs error

	if len(req.Entries) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("request must carry at least one entry"))
	}
	if len(req.Entries) > MaxDomainEntries {
		errs = multierr.Append(errs, fmt.Errorf("request carries %d entries, exceeding MAX_DOMAINS=%d", len(req.Entries), MaxDomainEntries))
	}

	seen := make(map[gang.DomainID]bool, len(req.Entries))
	for _, e := range req.Entries {
		if e.DomainID <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("domain id must be positive, got %d", e.DomainID))
			continue
		}
		if seen[e.DomainID] {
			errs = multierr.Append(errs, &gang.ValidationError{DomainID: e.DomainID, Reason: "duplicate entry in request"})
			continue
		}
		seen[e.DomainID] = true

		if e.Mask.IsEmpty() {
			errs = multierr.Append(errs, &gang.ValidationError{DomainID: e.DomainID, Reason: "pCPU mask must be non-empty"})
		}
		if !e.Mask.Subset(poolMask) {
			errs = multierr.Append(errs, &gang.ValidationError{DomainID: e.DomainID, Reason: "pCPU mask is not a subset of the pool"})
		}
		if e.Policy.Kind == gang.PolicyNone {
			errs = multierr.Append(errs, &gang.ValidationError{DomainID: e.DomainID, Reason: "policy must not be None"})
		}
		if err := validatePolicyParams(e.Policy, grain); err != nil {
			errs = multierr.Append(errs, &gang.ValidationError{DomainID: e.DomainID, Reason: err.Error()})
		}

		if prior, ok := existing[e.DomainID]; ok {
			if prior.NumVCPUs != e.Mask.Weight() {
				errs = multierr.Append(errs, &gang.ValidationError{
					DomainID: e.DomainID,
					Reason:   fmt.Sprintf("mask weight %d does not match domain's fixed vCPU count %d", e.Mask.Weight(), prior.NumVCPUs),
				})
			}
		}
	}

	return errs
}

// validatePolicyParams re-runs each variant's per-kind constructor validation (spec.md
// §6) against an already-built PolicySpec, since request entries arrive pre-built rather
// than through gang.NewTimeTriggered et al.
func validatePolicyParams(p gang.PolicySpec, grain int64) error {
	switch p.Kind {
	case gang.PolicyTimeTriggered, gang.PolicyEventTriggered:
		if p.Period >= gang.Infinity {
			return fmt.Errorf("period must be finite, got %d", p.Period)
		}
		if p.Active < grain {
			return fmt.Errorf("active (%d) must be >= grain (%d)", p.Active, grain)
		}
		if p.Active >= p.Period {
			return fmt.Errorf("active (%d) must be < period (%d)", p.Active, p.Period)
		}
	case gang.PolicyBestEffort:
		if p.Weight < 1 {
			return fmt.Errorf("best-effort weight must be in [1,65535], got %d", p.Weight)
		}
	}
	return nil
}

// sortedEntries returns req.Entries sorted by domain id, the deterministic processing
// order spec.md §4.4 requires downstream in the topology engine.
func sortedEntries(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].DomainID < out[j].DomainID })
	return out
}
