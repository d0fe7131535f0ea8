// Package topology computes the cohort partition of the pCPU pool from the current
// domain set (component G, spec.md §4.4): the maximal sets of pCPUs whose local
// schedulers must share an identical view to preserve the gang property.
package topology

import (
	"sort"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/samber/lo"

	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
)

// Topology is the derived, pool-wide cohort partition published by the reconfiguration
// coordinator between its two barriers.
type Topology struct {
	PoolSize int

	// PCPUToCohort maps a pCPU id to its cohort id, or -1 if the pCPU belongs to no
	// domain's mask.
	PCPUToCohort []int

	// CohortMasks maps a cohort id to its pCPU mask. The family of these masks
	// partitions the set of pCPUs assigned to at least one domain.
	CohortMasks []pcpuset.Set

	// BEDomsInCohort[k] counts the best-effort domains placed in cohort k.
	BEDomsInCohort []int
}

// Compute runs the cohort-construction algorithm of spec.md §4.4 over domains and
// mutates each domain's Cohort field in place. Domains are processed in ascending
// domain-id order, matching "arbitrary but deterministic order."
//
// Fatal: a domain whose mask is not fully contained by any resulting cohort after
// construction indicates a bug in the merge/assignment algorithm itself, not a user
// error, and halts the subsystem (spec.md §4.4 step 5, "absence is fatal").
func Compute(poolSize int, domains []*gang.Domain) Topology {
	ordered := append([]*gang.Domain(nil), domains...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var cohorts []pcpuset.Set
	for _, d := range ordered {
		_, idx, found := lo.FindIndexOf(cohorts, func(c pcpuset.Set) bool {
			return c.Intersects(d.Mask)
		})
		if found {
			cohorts[idx] = cohorts[idx].Union(d.Mask)
		} else {
			cohorts = append(cohorts, d.Mask.Clone())
		}
	}

	cohorts = mergeOverlapping(cohorts)

	pcpuToCohort := make([]int, poolSize)
	for i := range pcpuToCohort {
		pcpuToCohort[i] = -1
	}
	for k, c := range cohorts {
		c.ForEach(func(p int) {
			if p < poolSize {
				pcpuToCohort[p] = k
			}
		})
	}

	for _, d := range ordered {
		_, idx, found := lo.FindIndexOf(cohorts, func(c pcpuset.Set) bool { return d.Mask.Subset(c) })
		if !found {
			gang.Fatalf(nil, "domain %d's pCPU mask is not contained by any cohort after partitioning", d.ID)
		}
		d.Cohort = idx
	}

	beCounts := make([]int, len(cohorts))
	for k := range cohorts {
		beCounts[k] = len(lo.Filter(ordered, func(d *gang.Domain, _ int) bool {
			return d.Cohort == k && d.Policy.Kind == gang.PolicyBestEffort
		}))
	}

	return Topology{
		PoolSize:       poolSize,
		PCPUToCohort:   pcpuToCohort,
		CohortMasks:    cohorts,
		BEDomsInCohort: beCounts,
	}
}

// mergeOverlapping repeatedly merges any two cohorts that still intersect. Step 2's
// expansion (replacing C_k with C_k ∪ M) can introduce overlap with a cohort processed
// earlier; this post-pass (spec.md §4.4 step 3) restores the partition property.
func mergeOverlapping(cohorts []pcpuset.Set) []pcpuset.Set {
	for {
		merged := false
		for i := 0; i < len(cohorts) && !merged; i++ {
			for j := i + 1; j < len(cohorts); j++ {
				if cohorts[i].Intersects(cohorts[j]) {
					cohorts[i] = cohorts[i].Union(cohorts[j])
					cohorts = append(cohorts[:j], cohorts[j+1:]...)
					merged = true
					break
				}
			}
		}
		if !merged {
			return cohorts
		}
	}
}

// CohortOf returns the cohort id of pcpu, or -1 if unassigned.
func (t Topology) CohortOf(pcpu int) int {
	if pcpu < 0 || pcpu >= len(t.PCPUToCohort) {
		return -1
	}
	return t.PCPUToCohort[pcpu]
}

// CohortMask returns the pCPU mask of the given cohort id.
func (t Topology) CohortMask(cohort int) pcpuset.Set {
	if cohort < 0 || cohort >= len(t.CohortMasks) {
		return pcpuset.New(t.PoolSize)
	}
	return t.CohortMasks[cohort]
}

// fingerprintView is the hash-stable projection of a Topology used by Fingerprint;
// pcpuset.Set is excluded directly since it carries no exported fields, so its bitmap
// words are hashed instead.
type fingerprintView struct {
	PoolSize       int
	PCPUToCohort   []int
	CohortBitmaps  [][]uint64
	BEDomsInCohort []int
}

// Fingerprint returns a stable hash of the derived topology, used by the idempotence
// test (spec.md §8) to assert that two PUTs of identical configuration produce
// byte-equal derived topology arrays.
func (t Topology) Fingerprint() (uint64, error) {
	view := fingerprintView{
		PoolSize:       t.PoolSize,
		PCPUToCohort:   t.PCPUToCohort,
		BEDomsInCohort: t.BEDomsInCohort,
	}
	for _, c := range t.CohortMasks {
		view.CohortBitmaps = append(view.CohortBitmaps, c.Bitmap())
	}
	return hashstructure.Hash(view, hashstructure.FormatV2, nil)
}
