package gang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPermanent_AlwaysSucceeds(t *testing.T) {
	p := NewPermanent(500)
	assert.Equal(t, PolicyPermanent, p.Kind)
	assert.Equal(t, int64(500), p.From)
}

func TestNewTimeTriggered_ValidBounds(t *testing.T) {
	p, err := NewTimeTriggered(0, 100_000, 20_000, true, 1000)
	require.NoError(t, err)
	assert.Equal(t, PolicyTimeTriggered, p.Kind)
	assert.Equal(t, int64(100_000), p.Period)
	assert.Equal(t, int64(20_000), p.Active)
	assert.True(t, p.SpaceFill)
}

func TestNewTimeTriggered_PeriodNotFinite_Errors(t *testing.T) {
	_, err := NewTimeTriggered(0, Infinity, 1000, false, 1000)
	assert.Error(t, err)
}

func TestNewTimeTriggered_ActiveBelowGrain_Errors(t *testing.T) {
	_, err := NewTimeTriggered(0, 100_000, 500, false, 1000)
	assert.Error(t, err)
}

func TestNewTimeTriggered_ActiveAtOrAbovePeriod_Errors(t *testing.T) {
	_, err := NewTimeTriggered(0, 100_000, 100_000, false, 1000)
	assert.Error(t, err)

	_, err = NewTimeTriggered(0, 100_000, 150_000, false, 1000)
	assert.Error(t, err)
}

func TestNewEventTriggered_SameBoundsAsTimeTriggered(t *testing.T) {
	p, err := NewEventTriggered(0, 50_000, 10_000, false, 1000)
	require.NoError(t, err)
	assert.Equal(t, PolicyEventTriggered, p.Kind)

	_, err = NewEventTriggered(0, 50_000, 50_000, false, 1000)
	assert.Error(t, err)
}

func TestNewBestEffort_ValidWeight(t *testing.T) {
	p, err := NewBestEffort(0, 3, true)
	require.NoError(t, err)
	assert.Equal(t, PolicyBestEffort, p.Kind)
	assert.Equal(t, uint16(3), p.Weight)
	assert.True(t, p.SpaceFill)
}

func TestNewBestEffort_ZeroWeight_Errors(t *testing.T) {
	_, err := NewBestEffort(0, 0, false)
	assert.Error(t, err)
}

func TestUtilisation_Permanent_IsOne(t *testing.T) {
	p := NewPermanent(0)
	assert.Equal(t, 1.0, p.Utilisation(0.1))
}

func TestUtilisation_Periodic_IsActiveOverPeriod(t *testing.T) {
	p, err := NewTimeTriggered(0, 100_000, 25_000, false, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p.Utilisation(0.1), 1e-9)
}

func TestUtilisation_BestEffort_IsReserveFraction(t *testing.T) {
	p, err := NewBestEffort(0, 1, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, p.Utilisation(0.1), 1e-9)
}

func TestUtilisation_None_IsZero(t *testing.T) {
	p := PolicySpec{Kind: PolicyNone}
	assert.Equal(t, 0.0, p.Utilisation(0.1))
}

func TestPolicyKind_String(t *testing.T) {
	cases := map[PolicyKind]string{
		PolicyNone:           "none",
		PolicyPermanent:      "permanent",
		PolicyTimeTriggered:  "time-triggered",
		PolicyEventTriggered: "event-triggered",
		PolicyBestEffort:     "best-effort",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
