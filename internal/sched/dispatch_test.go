package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangsched/gangsched/internal/config"
	"github.com/gangsched/gangsched/internal/gang"
	"github.com/gangsched/gangsched/internal/pcpuset"
	"github.com/gangsched/gangsched/internal/topology"
)

func singlePCPULocal(t *testing.T, cfg config.Config) *Local {
	t.Helper()
	mask := pcpuset.FromSlice(1, []int{0})
	return NewLocal(0, mask, 1, topology.Topology{PoolSize: 1}, cfg)
}

func TestDispatch_PermanentDomain_AlwaysSelectedWithInfiniteSlice(t *testing.T) {
	cfg := config.Default()
	l := singlePCPULocal(t, cfg)

	mask := pcpuset.FromSlice(1, []int{0})
	d := gang.NewDomain(1, mask, gang.NewPermanent(0))
	tk := gang.NewTicket(gang.VCPUID{Domain: d.ID, Index: 0}, d)
	l.EDF.Insert(tk)

	result := Dispatch(l, 0, 0, false)

	assert.Equal(t, gang.VCPUID{Domain: 1, Index: 0}, result.VCPU)
	assert.Equal(t, int64(-1), result.SliceNS)
}

func TestDispatch_EDF_PicksEarliestDeadlineAndKeepsLoserQueued(t *testing.T) {
	cfg := config.Default()
	l := singlePCPULocal(t, cfg)

	maskA := pcpuset.FromSlice(1, []int{0})
	maskB := pcpuset.FromSlice(1, []int{0})
	policyA, err := gang.NewBestEffort(0, 1, false)
	require.NoError(t, err)
	policyB, err := gang.NewBestEffort(0, 1, false)
	require.NoError(t, err)
	domA := gang.NewDomain(1, maskA, policyA)
	domB := gang.NewDomain(2, maskB, policyB)

	ticketA := gang.NewTicket(gang.VCPUID{Domain: domA.ID, Index: 0}, domA)
	ticketA.Deadline = 1000
	ticketA.RemainingTime = 50_000
	ticketB := gang.NewTicket(gang.VCPUID{Domain: domB.ID, Index: 0}, domB)
	ticketB.Deadline = 2000
	ticketB.RemainingTime = 50_000

	l.EDF.Insert(ticketB)
	l.EDF.Insert(ticketA)

	result := Dispatch(l, 0, 0, false)

	assert.Equal(t, gang.VCPUID{Domain: 1, Index: 0}, result.VCPU, "earlier deadline wins the only pCPU")
	assert.Equal(t, gang.LocationEDFQueue, ticketB.Location, "the cohort is full once A is placed, so B stays in the EDF queue, not dropped")
}

func TestDispatch_CarriesOverDispatchedTicketAcrossTicks(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimitUS = 1 // 1us grain for tidy arithmetic
	cfg.Normalize()
	l := singlePCPULocal(t, cfg)

	mask := pcpuset.FromSlice(1, []int{0})
	policy, err := gang.NewTimeTriggered(0, 100_000, 20_000, false, cfg.Grain())
	require.NoError(t, err)
	dom := gang.NewDomain(1, mask, policy)

	ticket := gang.NewTicket(gang.VCPUID{Domain: dom.ID, Index: 0}, dom)
	ticket.Deadline = 1000
	ticket.RemainingTime = 50_000
	l.EDF.Insert(ticket)

	first := Dispatch(l, 0, 0, false)
	require.Equal(t, gang.VCPUID{Domain: 1, Index: 0}, first.VCPU)
	require.Equal(t, int64(50_000), first.SliceNS)

	// Advancing 10us leaves remaining_time (40us) well above MARGIN: the ticket must stay
	// dispatched without ever re-entering the EDF queue.
	second := Dispatch(l, 0, 10_000, false)
	assert.Equal(t, gang.VCPUID{Domain: 1, Index: 0}, second.VCPU)
	assert.Equal(t, int64(40_000), ticket.RemainingTime)
	assert.Equal(t, gang.LocationDispatched, ticket.Location)
	assert.Equal(t, int64(40_000), second.SliceNS)

	// Advancing a further 35us drops remaining_time (5us) below MARGIN: the ticket must
	// reinitialize (start time and deadline one period later, fresh remaining_time) and
	// wait in the activation queue until its next period starts at 100us, leaving the
	// pCPU idle until then.
	third := Dispatch(l, 0, 45_000, false)
	assert.Equal(t, Idle, third.VCPU)
	assert.Equal(t, int64(101_000), ticket.Deadline)
	assert.Equal(t, int64(20_000), ticket.RemainingTime)
	assert.Equal(t, int64(55_000), third.SliceNS)
}

func TestDispatch_TaskletPending_ForcesIdleRegardlessOfTicket(t *testing.T) {
	cfg := config.Default()
	l := singlePCPULocal(t, cfg)

	mask := pcpuset.FromSlice(1, []int{0})
	d := gang.NewDomain(1, mask, gang.NewPermanent(0))
	tk := gang.NewTicket(gang.VCPUID{Domain: d.ID, Index: 0}, d)
	l.EDF.Insert(tk)

	result := Dispatch(l, 0, 0, true)
	assert.Equal(t, Idle, result.VCPU)
}

func TestDispatch_YieldedTicket_SubstitutesSpaceFillingDomain(t *testing.T) {
	cfg := config.Default()
	l := singlePCPULocal(t, cfg)

	maskA := pcpuset.FromSlice(1, []int{0})
	maskB := pcpuset.FromSlice(1, []int{0})
	policyA, err := gang.NewBestEffort(0, 1, false)
	require.NoError(t, err)
	policyB, err := gang.NewBestEffort(0, 1, true)
	require.NoError(t, err)
	domA := gang.NewDomain(1, maskA, policyA)
	domB := gang.NewDomain(2, maskB, policyB)

	a := gang.NewTicket(gang.VCPUID{Domain: domA.ID, Index: 0}, domA)
	a.Deadline = 1000
	a.RemainingTime = 10_000_000
	b := gang.NewTicket(gang.VCPUID{Domain: domB.ID, Index: 0}, domB)
	b.Deadline = 2000

	l.EDF.Insert(a)
	l.EDF.Insert(b)

	first := Dispatch(l, 0, 0, false)
	require.Equal(t, gang.VCPUID{Domain: 1, Index: 0}, first.VCPU, "a wins the only pCPU; b stays queued")

	a.SetYield(true)
	second := Dispatch(l, 0, 1_000, false)

	assert.Equal(t, gang.VCPUID{Domain: 2, Index: 0}, second.VCPU, "b's vCPU fills the space a yielded")
	assert.False(t, a.Yielding(), "the yield bit is cleared once consumed")
}

func TestDispatch_YieldedTicket_NoSubstitute_ForcesIdle(t *testing.T) {
	cfg := config.Default()
	l := singlePCPULocal(t, cfg)

	mask := pcpuset.FromSlice(1, []int{0})
	policy, err := gang.NewBestEffort(0, 1, false) // no domain opts into space_fill
	require.NoError(t, err)
	dom := gang.NewDomain(1, mask, policy)

	a := gang.NewTicket(gang.VCPUID{Domain: dom.ID, Index: 0}, dom)
	a.Deadline = 1000
	a.RemainingTime = 10_000_000
	l.EDF.Insert(a)

	first := Dispatch(l, 0, 0, false)
	require.Equal(t, gang.VCPUID{Domain: 1, Index: 0}, first.VCPU)

	a.SetYield(true)
	second := Dispatch(l, 0, 1_000, false)

	assert.Equal(t, Idle, second.VCPU, "no space-filling substitute exists; the pCPU must go idle")
	assert.False(t, a.Yielding(), "the yield bit is still cleared once consumed")
	assert.True(t, a.ForceIdle)
}

func TestDispatch_PermanentExclusivity_FatalWhenCoLocated(t *testing.T) {
	cfg := config.Default()
	mask := pcpuset.FromSlice(2, []int{0, 1})
	l := NewLocal(0, mask, 2, topology.Topology{PoolSize: 2}, cfg)

	permMask := pcpuset.FromSlice(2, []int{0})
	otherMask := pcpuset.FromSlice(2, []int{1})
	permDom := gang.NewDomain(1, permMask, gang.NewPermanent(0))
	bePolicy, err := gang.NewBestEffort(0, 1, false)
	require.NoError(t, err)
	otherDom := gang.NewDomain(2, otherMask, bePolicy)

	permTicket := gang.NewTicket(gang.VCPUID{Domain: permDom.ID, Index: 0}, permDom)
	otherTicket := gang.NewTicket(gang.VCPUID{Domain: otherDom.ID, Index: 0}, otherDom)
	otherTicket.Deadline = 1000
	otherTicket.RemainingTime = 50_000

	l.EDF.Insert(permTicket)
	l.EDF.Insert(otherTicket)

	defer func() {
		r := recover()
		require.NotNil(t, r, "co-locating a permanent ticket with another must panic")
		_, ok := r.(*gang.InvariantViolation)
		assert.True(t, ok, "panic value must be a *gang.InvariantViolation")
	}()

	Dispatch(l, 0, 0, false)
	t.Fatal("expected panic before reaching this point")
}
