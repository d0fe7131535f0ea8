package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangsched/gangsched/internal/config"
	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
	"github.com/gangsched/gangsched/internal/topology"
)

func TestNew_EmptyPool_HasFullMaskAndNoCohorts(t *testing.T) {
	p := New(4, config.Default())

	assert.Equal(t, 4, p.Size)
	assert.Equal(t, 4, p.PoolMask.Weight())
	assert.Empty(t, p.Domains())
	assert.Nil(t, p.Local(0))
}

func TestTryLock_SecondCallFailsUntilUnlocked(t *testing.T) {
	p := New(4, config.Default())

	require.True(t, p.TryLock())
	assert.False(t, p.TryLock(), "a second concurrent reconfiguration must observe busy")
	assert.True(t, p.IsBusy())

	p.Unlock()
	assert.False(t, p.IsBusy())
	assert.True(t, p.TryLock())
}

func TestCommit_PublishesDomainsTopologyAndLocals(t *testing.T) {
	p := New(4, config.Default())

	d := gang.NewDomain(1, pcpuset.FromSlice(4, []int{0, 1}), gang.NewPermanent(0))
	domains := map[gang.DomainID]*gang.Domain{1: d}
	top := topology.Compute(4, []*gang.Domain{d})

	p.Commit(domains, top, nil)

	got, ok := p.Domain(1)
	require.True(t, ok)
	assert.Same(t, d, got)

	assert.Equal(t, top.CohortOf(0), p.Topology().CohortOf(0))
}

func TestSnapshotDomains_ReturnsDefensiveCopy(t *testing.T) {
	p := New(4, config.Default())
	d := gang.NewDomain(1, pcpuset.FromSlice(4, []int{0}), gang.NewPermanent(0))
	p.Commit(map[gang.DomainID]*gang.Domain{1: d}, topology.Compute(4, []*gang.Domain{d}), nil)

	snap := p.SnapshotDomains()
	require.Len(t, snap, 1)
	assert.NotSame(t, d, snap[1], "snapshot must copy domain structs, not alias them")
	assert.Equal(t, d.ID, snap[1].ID)

	snap[1].NumVCPUs = 99
	again, _ := p.Domain(1)
	assert.NotEqual(t, 99, again.NumVCPUs, "mutating the snapshot must not affect the committed domain")
}
