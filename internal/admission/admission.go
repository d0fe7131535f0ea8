// Package admission implements the admission validator (component J, spec.md §4.7): a
// per-pCPU utilisation feasibility check run by the reconfiguration coordinator against
// a proposed domain set before it is ever committed.
package admission

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
)

// Report is the per-pCPU breakdown produced by Validate, returned on both success and
// failure so a caller (the CLI, a test) can inspect margins even when admission passes.
type Report struct {
	PoolSize int
	// Utilisation[c] is the summed utilisation on pCPU c.
	Utilisation []float64
	// Domains[c] lists the domains contributing to pCPU c's utilisation, in domain-id
	// order.
	Domains [][]gang.DomainID
	// Overloaded lists, in ascending order, every pCPU c with Utilisation[c] > 1.0.
	Overloaded []int
}

// Feasible reports whether every pCPU's utilisation is within bound.
func (r Report) Feasible() bool { return len(r.Overloaded) == 0 }

// Validate runs the §4.7 feasibility test over domains against a pool of poolSize pCPUs,
// using beReserveFraction as the pool-wide best-effort reserve (config.Config.BEReserveFraction).
//
// Returns a non-nil *gang.AdmissionError alongside the report when infeasible; the report
// is always populated so the coordinator can log full diagnostics even on rejection.
func Validate(poolSize int, domains []*gang.Domain, beReserveFraction float64) (Report, error) {
	report := Report{
		PoolSize:    poolSize,
		Utilisation: make([]float64, poolSize),
		Domains:     make([][]gang.DomainID, poolSize),
	}

	ordered := append([]*gang.Domain(nil), domains...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	beChargedOnPCPU := make([]bool, poolSize)

	for c := 0; c < poolSize; c++ {
		onC := lo.Filter(ordered, func(d *gang.Domain, _ int) bool { return d.Mask.Test(c) })
		for _, d := range onC {
			report.Domains[c] = append(report.Domains[c], d.ID)
			if d.Policy.Kind == gang.PolicyBestEffort {
				if beChargedOnPCPU[c] {
					continue // reserve counted at most once per pCPU (spec.md §4.7)
				}
				beChargedOnPCPU[c] = true
			}
			report.Utilisation[c] += d.Policy.Utilisation(beReserveFraction)
		}
	}

	for c := 0; c < poolSize; c++ {
		if report.Utilisation[c] > 1.0 {
			report.Overloaded = append(report.Overloaded, c)
		}
	}

	if err := validatePermanentExclusivity(ordered, poolSize); err != nil {
		return report, err
	}

	if len(report.Overloaded) > 0 {
		return report, &gang.AdmissionError{
			OverloadedPCPUs: report.Overloaded,
			Detail:          fmt.Sprintf("utilisation exceeds 1.0 on %d pCPU(s)", len(report.Overloaded)),
		}
	}
	return report, nil
}

// validatePermanentExclusivity enforces spec.md §4.7's additional condition: a pCPU
// hosting a permanent domain must host exactly that domain.
func validatePermanentExclusivity(ordered []*gang.Domain, poolSize int) error {
	owner := make([]gang.DomainID, poolSize)
	hasPermanent := make([]bool, poolSize)
	for c := range owner {
		owner[c] = -1
	}

	for _, d := range ordered {
		if d.Policy.Kind != gang.PolicyPermanent {
			continue
		}
		d.Mask.ForEach(func(c int) {
			if c < poolSize {
				hasPermanent[c] = true
				owner[c] = d.ID
			}
		})
	}

	var offending []int
	mask := pcpuset.New(poolSize)
	for _, d := range ordered {
		d.Mask.ForEach(func(c int) {
			if c < poolSize && hasPermanent[c] && owner[c] != d.ID {
				mask.Add(c)
			}
		})
	}
	mask.ForEach(func(c int) { offending = append(offending, c) })

	if len(offending) > 0 {
		return &gang.AdmissionError{
			OverloadedPCPUs: offending,
			Detail:          "permanent domain sharing a pCPU with another domain",
		}
	}
	return nil
}
