// cmd/request_file.go
package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
	"github.com/gangsched/gangsched/internal/reconfig"
)

// entryFile is the on-disk YAML shape for a put request, mirroring spec.md §6's request
// record in a human-editable form for the demo CLI (no transport layer, per SPEC_FULL.md
// §6's "human-usable surface ... without adding a transport layer").
type entryFile struct {
	PoolID  uint32           `yaml:"pool_id"`
	Entries []entryFileEntry `yaml:"entries"`
}

type entryFileEntry struct {
	DomainID int32              `yaml:"domain_id"`
	PCPUs    []int              `yaml:"pcpus"`
	Policy   entryFilePolicySet `yaml:"policy"`
}

type entryFilePolicySet struct {
	Kind      string `yaml:"kind"` // permanent | time-triggered | event-triggered | best-effort
	FromNS    int64  `yaml:"from_ns"`
	PeriodNS  int64  `yaml:"period_ns"`
	ActiveNS  int64  `yaml:"active_ns"`
	Weight    uint16 `yaml:"weight"`
	SpaceFill bool   `yaml:"space_fill"`
}

// loadPutRequest reads and decodes path into a reconfig.PutRequest, building pCPU masks
// sized for poolSize and constructing each PolicySpec through gang's validating
// constructors so a malformed file fails the same way a malformed wire request would.
func loadPutRequest(path string, poolSize int, grain int64) (reconfig.PutRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reconfig.PutRequest{}, fmt.Errorf("reading request file: %w", err)
	}
	var ef entryFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&ef); err != nil {
		return reconfig.PutRequest{}, fmt.Errorf("parsing request file: %w", err)
	}

	req := reconfig.PutRequest{PoolID: ef.PoolID, Entries: make([]reconfig.Entry, 0, len(ef.Entries))}
	for _, e := range ef.Entries {
		mask := pcpuset.New(poolSize)
		for _, p := range e.PCPUs {
			mask.Add(p)
		}
		policy, err := buildPolicy(e.Policy, grain)
		if err != nil {
			return reconfig.PutRequest{}, fmt.Errorf("domain %d: %w", e.DomainID, err)
		}
		req.Entries = append(req.Entries, reconfig.Entry{
			DomainID: gang.DomainID(e.DomainID),
			Mask:     mask,
			Policy:   policy,
		})
	}
	return req, nil
}

func buildPolicy(p entryFilePolicySet, grain int64) (gang.PolicySpec, error) {
	switch p.Kind {
	case "permanent":
		return gang.NewPermanent(p.FromNS), nil
	case "time-triggered":
		return gang.NewTimeTriggered(p.FromNS, p.PeriodNS, p.ActiveNS, p.SpaceFill, grain)
	case "event-triggered":
		return gang.NewEventTriggered(p.FromNS, p.PeriodNS, p.ActiveNS, p.SpaceFill, grain)
	case "best-effort":
		return gang.NewBestEffort(p.FromNS, p.Weight, p.SpaceFill)
	default:
		return gang.PolicySpec{}, fmt.Errorf("unrecognised policy kind %q", p.Kind)
	}
}

// entriesToFile is the inverse of loadPutRequest, used by the get subcommand to print the
// round-tripped configuration as YAML (SPEC_FULL.md §6).
func entriesToFile(poolID uint32, entries []reconfig.Entry) entryFile {
	ef := entryFile{PoolID: poolID, Entries: make([]entryFileEntry, 0, len(entries))}
	for _, e := range entries {
		ef.Entries = append(ef.Entries, entryFileEntry{
			DomainID: int32(e.DomainID),
			PCPUs:    e.Mask.Members(),
			Policy: entryFilePolicySet{
				Kind:      e.Policy.Kind.String(),
				FromNS:    e.Policy.From,
				PeriodNS:  e.Policy.Period,
				ActiveNS:  e.Policy.Active,
				Weight:    e.Policy.Weight,
				SpaceFill: e.Policy.SpaceFill,
			},
		})
	}
	return ef
}
