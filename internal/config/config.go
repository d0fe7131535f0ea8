// Package config loads the scheduler's boot parameters (spec.md §6): environment
// variables first, then an optional YAML file, mirroring the teacher's layered
// config-then-override pattern (sim/bundle.go's LoadPolicyBundle, cmd/root.go's
// flag-over-default layering).
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	minAdjustUpperBoundNS = 10 * 1_000_000  // 10ms
	maxAdjustUpperBoundNS = 500 * 1_000_000 // 500ms
	defaultAdjustUpperNS  = 100 * 1_000_000 // 100ms
	forcedHalfFloorNS     = 1_000_000       // 1ms
	forcedUpperWhenLowNS  = 2_000_000       // 2ms

	defaultBEReservePct  = 10
	defaultBEPeriodNS    = 100 * 1_000_000 // 100ms
	defaultRateLimitUS   = 1000            // 1ms, converted below into Grain
)

// Config holds the scheduler's boot parameters, all in nanoseconds except BEReservePct
// (a percentage) and RateLimitUS (the host rate-limit parameter the grain derives from,
// kept in microseconds to mirror the host interface named in spec.md §6).
type Config struct {
	// BEReservePct is sched_gang_cpu_rsrv_4_be_doms: percentage of each pCPU's budget
	// reserved for best-effort domains collectively, in [0,100].
	BEReservePct int `yaml:"be_reserve_pct"`

	// BEPeriodNS is sched_gang_period_4_be_doms, in ns, minimum 100*Grain.
	BEPeriodNS int64 `yaml:"be_period_ns"`

	// AdjustUpperBoundNS is sched_gang_adj_time_upper_bound, clamped to
	// [10ms, 500ms]; forced to 2ms if its half falls below 1ms.
	AdjustUpperBoundNS int64 `yaml:"adjust_upper_bound_ns"`

	// RateLimitUS is the host's rate-limit parameter in microseconds; Grain is derived
	// from it (Grain = RateLimitUS * 1000).
	RateLimitUS int64 `yaml:"rate_limit_us"`
}

// Default returns the boot parameters at their spec.md §6 defaults.
func Default() Config {
	c := Config{
		BEReservePct:       defaultBEReservePct,
		BEPeriodNS:         defaultBEPeriodNS,
		AdjustUpperBoundNS: defaultAdjustUpperNS,
		RateLimitUS:        defaultRateLimitUS,
	}
	c.Normalize()
	return c
}

// Grain is the finest scheduling grain in ns: the host's rate-limit parameter
// converted from µs (spec.md §6, "Grain").
func (c Config) Grain() int64 { return c.RateLimitUS * 1000 }

// BEQuantum is be_period * be_reserve / 100, the fixed remaining-time budget assigned
// to each best-effort ticket on (re)activation.
func (c Config) BEQuantum() int64 {
	return c.BEPeriodNS * int64(c.BEReservePct) / 100
}

// BEReserveFraction returns the reserve as a [0,1] fraction, used by the admission
// validator's per-pCPU utilisation sum.
func (c Config) BEReserveFraction() float64 {
	return float64(c.BEReservePct) / 100.0
}

// Normalize applies the clamps and floors of spec.md §6 in place.
func (c *Config) Normalize() {
	if c.BEReservePct < 0 {
		c.BEReservePct = 0
	}
	if c.BEReservePct > 100 {
		c.BEReservePct = 100
	}
	if c.RateLimitUS <= 0 {
		c.RateLimitUS = defaultRateLimitUS
	}

	minBEPeriod := 100 * c.Grain()
	if c.BEPeriodNS < minBEPeriod {
		c.BEPeriodNS = minBEPeriod
	}

	if c.AdjustUpperBoundNS < minAdjustUpperBoundNS {
		c.AdjustUpperBoundNS = minAdjustUpperBoundNS
	}
	if c.AdjustUpperBoundNS > maxAdjustUpperBoundNS {
		c.AdjustUpperBoundNS = maxAdjustUpperBoundNS
	}
	if c.AdjustUpperBoundNS/2 < forcedHalfFloorNS {
		c.AdjustUpperBoundNS = forcedUpperWhenLowNS
	}
}

// FloorToGrain floors v down to the nearest multiple of the grain.
func (c Config) FloorToGrain(v int64) int64 {
	g := c.Grain()
	if g <= 0 {
		return v
	}
	return (v / g) * g
}

// CeilToGrain rounds v up to the nearest multiple of the grain.
func (c Config) CeilToGrain(v int64) int64 {
	g := c.Grain()
	if g <= 0 {
		return v
	}
	if v%g == 0 {
		return v
	}
	return (v/g + 1) * g
}

var envKeys = map[string]func(*Config, string) error{
	"sched_gang_cpu_rsrv_4_be_doms": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("sched_gang_cpu_rsrv_4_be_doms: %w", err)
		}
		c.BEReservePct = n
		return nil
	},
	"sched_gang_period_4_be_doms": func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("sched_gang_period_4_be_doms: %w", err)
		}
		c.BEPeriodNS = n
		return nil
	},
	"sched_gang_adj_time_upper_bound": func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("sched_gang_adj_time_upper_bound: %w", err)
		}
		c.AdjustUpperBoundNS = n
		return nil
	},
}

// LoadEnv overlays recognised environment variables onto a copy of base and normalises
// the result. Unset variables leave base's value untouched.
func LoadEnv(base Config) (Config, error) {
	c := base
	for key, apply := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			if err := apply(&c, v); err != nil {
				return Config{}, err
			}
		}
	}
	c.Normalize()
	return c, nil
}

// LoadYAMLFile reads and strictly decodes a YAML boot-parameter file (unrecognised keys
// are rejected), overlaying it onto base, matching the teacher's strict-decode
// LoadPolicyBundle (sim/bundle.go).
func LoadYAMLFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading boot parameter file: %w", err)
	}
	c := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("parsing boot parameter file: %w", err)
	}
	c.Normalize()
	return c, nil
}
