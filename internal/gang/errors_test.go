package gang

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatalf_PanicsWithInvariantViolation(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		iv, ok := r.(*InvariantViolation)
		require.True(t, ok)
		assert.Equal(t, "ticket 3 found nowhere", iv.Reason)
		assert.Contains(t, iv.Error(), "ticket 3 found nowhere")
	}()

	Fatalf(logrus.Fields{"domain": 3}, "ticket %d found nowhere", 3)
	t.Fatal("expected panic before reaching this point")
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{DomainID: 7, Reason: "pCPU mask must be non-empty"}
	assert.Equal(t, "domain 7: pCPU mask must be non-empty", err.Error())
}

func TestAdmissionError_Error(t *testing.T) {
	err := &AdmissionError{OverloadedPCPUs: []int{2, 5}, Detail: "sum exceeds 1.0"}
	assert.Contains(t, err.Error(), "[2 5]")
	assert.Contains(t, err.Error(), "sum exceeds 1.0")
}
