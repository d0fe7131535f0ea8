// Package pool holds the pool-scoped global state named in spec.md §9 ("Global mutable
// state"): the domain records, the current topology, the boot parameters, and one local
// scheduler per cohort. It is deliberately a single struct rather than file-scope
// statics, matching spec.md §9's explicit instruction to "surface this as an explicit,
// pool-scoped structure."
package pool

import (
	"sync"

	"github.com/gangsched/gangsched/internal/config"
	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
	"github.com/gangsched/gangsched/internal/sched"
	"github.com/gangsched/gangsched/internal/topology"
)

// Pool is the pool-wide state a single hypervisor instance owns: every domain record,
// the currently published topology, boot parameters, and the cohort-indexed local
// schedulers that dispatch from it. Pool's exported methods are safe for concurrent use;
// internal/reconfig serialises PUTs with TryLock/Unlock so a second concurrent PUT observes
// EBUSY instead of corrupting state (spec.md §4.6 "Caller constraint").
type Pool struct {
	mu sync.Mutex

	Size     int
	PoolMask pcpuset.Set
	Cfg      config.Config

	domains  map[gang.DomainID]*gang.Domain
	topology topology.Topology
	locals   []*sched.Local

	reconfiguring bool
}

// New returns an empty pool of size pCPUs with no domains placed.
func New(size int, cfg config.Config) *Pool {
	cfg.Normalize()
	return &Pool{
		Size:     size,
		PoolMask: pcpuset.Full(size),
		Cfg:      cfg,
		domains:  make(map[gang.DomainID]*gang.Domain),
		topology: topology.Topology{PoolSize: size, PCPUToCohort: emptyCohortMap(size)},
	}
}

func emptyCohortMap(size int) []int {
	m := make([]int, size)
	for i := range m {
		m[i] = -1
	}
	return m
}

// IsBusy reports whether a reconfiguration is currently in flight.
func (p *Pool) IsBusy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reconfiguring
}

// TryLock acquires the pool for exclusive reconfiguration, returning false if a
// reconfiguration is already in flight (spec.md §4.6 "Concurrent invocations fail with
// busy").
func (p *Pool) TryLock() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reconfiguring {
		return false
	}
	p.reconfiguring = true
	return true
}

// Unlock releases the reconfiguration-in-flight flag.
func (p *Pool) Unlock() {
	p.mu.Lock()
	p.reconfiguring = false
	p.mu.Unlock()
}

// Domains returns a snapshot slice of every currently placed domain record, in no
// particular order. Callers must not mutate the returned domains directly.
func (p *Pool) Domains() []*gang.Domain {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*gang.Domain, 0, len(p.domains))
	for _, d := range p.domains {
		out = append(out, d)
	}
	return out
}

// Domain looks up a single domain record by id.
func (p *Pool) Domain(id gang.DomainID) (*gang.Domain, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.domains[id]
	return d, ok
}

// Topology returns the currently published topology.
func (p *Pool) Topology() topology.Topology {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topology
}

// Local returns the shared local scheduler for the cohort that pcpu belongs to, or nil
// if pcpu is unassigned.
func (p *Pool) Local(pcpu int) *sched.Local {
	p.mu.Lock()
	defer p.mu.Unlock()
	cohort := p.topology.CohortOf(pcpu)
	if cohort < 0 || cohort >= len(p.locals) {
		return nil
	}
	return p.locals[cohort]
}

// Commit is called only by internal/reconfig, holding the reconfiguration lock, to
// publish a new domain set, topology, and local-scheduler array atomically from the
// caller's point of view (spec.md §5 "published across a memory barrier" — the mutex
// plays that role here since there is no literal hardware barrier in this process).
func (p *Pool) Commit(domains map[gang.DomainID]*gang.Domain, top topology.Topology, locals []*sched.Local) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.domains = domains
	p.topology = top
	p.locals = locals
}

// SnapshotDomains returns a defensive copy of the domain-id -> *Domain map for the
// reconfiguration coordinator to mutate into a candidate state.
func (p *Pool) SnapshotDomains() map[gang.DomainID]*gang.Domain {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[gang.DomainID]*gang.Domain, len(p.domains))
	for id, d := range p.domains {
		cp := *d
		out[id] = &cp
	}
	return out
}
