package gang

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// InvariantViolation marks a fatal bug in the scheduler core: a ticket found in none or
// multiple containers, a timing clamp exceeded, or a permanent domain co-located with
// another ticket. Per spec.md §7 these halt the subsystem rather than being recovered.
type InvariantViolation struct {
	Reason string
	Fields logrus.Fields
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("gang: invariant violation: %s (%v)", e.Reason, e.Fields)
}

// Fatalf logs a diagnostic at Error level and panics with an *InvariantViolation.
//
// The host process is expected to treat this as a halt-the-subsystem condition; a test
// harness may recover() it to assert the invariant check fired.
func Fatalf(fields logrus.Fields, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	logrus.WithFields(fields).Error(reason)
	panic(&InvariantViolation{Reason: reason, Fields: fields})
}

// ValidationError wraps a single per-entry validation failure in a PUT request.
type ValidationError struct {
	DomainID DomainID
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("domain %d: %s", e.DomainID, e.Reason)
}

// AdmissionError reports infeasible per-pCPU utilisation.
type AdmissionError struct {
	OverloadedPCPUs []int
	Detail          string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission: infeasible on pCPUs %v: %s", e.OverloadedPCPUs, e.Detail)
}
