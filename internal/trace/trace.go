// Package trace provides decision-trace recording for the dispatcher and the
// reconfiguration coordinator, grounded on the teacher's sim/trace package: a
// level-gated recorder holding pure data types with no dependency on the components
// whose decisions it records.
package trace

// Level controls the verbosity of decision tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead: Record* calls become no-ops).
	LevelNone Level = "none"
	// LevelDecisions captures every dispatch and reconfiguration decision.
	LevelDecisions Level = "decisions"
)

var validLevels = map[Level]bool{
	LevelNone:      true,
	LevelDecisions: true,
	"":              true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is a recognized trace level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// Config controls trace collection behavior.
type Config struct {
	Level Level
}

// DispatchRecord captures one pCPU's dispatch decision for one tick (component H).
type DispatchRecord struct {
	Tick     int64
	PCPU     int
	Cohort   int
	DomainID int32 // 0 when idle
	SliceNS  int64 // -1 for an infinite (permanent) slice
	Idle     bool
}

// ReconfigRecord captures one reconfiguration coordinator outcome (component I).
type ReconfigRecord struct {
	PoolID    uint32
	Command   string // "put" or "get"
	Accepted  bool
	Reason    string
	NumDomain int
}

// Trace collects decision records during a run. A nil *Trace is safe to call Record* on
// (both methods are no-ops), so callers can pass a possibly-nil trace without branching.
type Trace struct {
	Config     Config
	Dispatches []DispatchRecord
	Reconfigs  []ReconfigRecord
}

// New returns a Trace ready for recording, or nil if cfg disables tracing (the
// subsequent Record* no-op path then costs nothing beyond a nil check).
func New(cfg Config) *Trace {
	if cfg.Level != LevelDecisions {
		return nil
	}
	return &Trace{Config: cfg}
}

// RecordDispatch appends a dispatch decision record.
func (t *Trace) RecordDispatch(r DispatchRecord) {
	if t == nil {
		return
	}
	t.Dispatches = append(t.Dispatches, r)
}

// RecordReconfig appends a reconfiguration outcome record.
func (t *Trace) RecordReconfig(r ReconfigRecord) {
	if t == nil {
		return
	}
	t.Reconfigs = append(t.Reconfigs, r)
}
