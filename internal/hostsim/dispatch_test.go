package hostsim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchAdjustAndPause_CallsEveryPCPUWithOneDesignated(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]bool)
	designatedCount := 0

	err := DispatchAdjustAndPause(context.Background(), 4, func(pcpu int, designated bool) error {
		mu.Lock()
		defer mu.Unlock()
		seen[pcpu] = true
		if designated {
			designatedCount++
			assert.Equal(t, 0, pcpu, "the designated pCPU must be pCPU 0")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, seen, 4)
	assert.Equal(t, 1, designatedCount)
}

func TestDispatchAdjustAndPause_NonPositivePoolSize_Errors(t *testing.T) {
	err := DispatchAdjustAndPause(context.Background(), 0, func(int, bool) error { return nil })
	assert.Error(t, err)
}

func TestDispatchAdjustAndPause_PropagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := DispatchAdjustAndPause(context.Background(), 3, func(pcpu int, designated bool) error {
		if pcpu == 1 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestDeadline_IsHalfTheUpperBoundAfterStart(t *testing.T) {
	start := time.Unix(0, 0)
	d := Deadline(start, 100_000_000) // 100ms upper bound
	assert.Equal(t, start.Add(50*time.Millisecond), d)
}
