// Package config carries every tunable spec.md names as a constant,
// exposed as nil-safe getters so a zero-valued or nil *RuntimeConfig
// reproduces the spec's literal defaults exactly.
package config

import "time"

const (
	KB = 1024
	MB = 1024 * KB
)

// Defaults mirror the constants named throughout spec.md §4.
const (
	// BufferSize is the range downloader's read/write chunk size (§4.5).
	BufferSize = 4096

	// MaxTotalRetries bounds read/write retries within one worker's pass
	// over its range (§4.5).
	MaxTotalRetries = 5

	// RetryWait is the sleep between retried read/write attempts (§4.5).
	RetryWait = 2000 * time.Millisecond

	// MaxHTTPRetries bounds ranged-GET attempts per range (§4.6).
	MaxHTTPRetries = 3

	// HTTPTimeout is the per-request timeout for ranged GETs (§4.6/§5).
	HTTPTimeout = 5000 * time.Millisecond

	// HTTPRetryWait is the inter-attempt wait for ranged-GET retries (§4.6).
	HTTPRetryWait = 5000 * time.Millisecond

	// SchedulerRetries is an allocator-level admission retry count (§4.1).
	// The scheduler does not read it: admission makes a single
	// Task.Execute attempt.
	SchedulerRetries = 5

	// SchedulerRetryWait is an allocator admission backoff (§4.1). The
	// scheduler does not read it either.
	SchedulerRetryWait = 1500 * time.Millisecond

	// SchedulerStopTimeout bounds how long Stop waits for the allocator
	// to exit (§4.1).
	SchedulerStopTimeout = 5000 * time.Millisecond

	// ConnectionPoolCapacity is the bounded reusable-client pool size (§5).
	ConnectionPoolCapacity = 6

	// SpeedSampleFloor is the anti-fluctuation minimum sample interval
	// for the speed tracker (§4.9).
	SpeedSampleFloor = 500 * time.Millisecond

	// MaxThreadCount is the upper bound on threads-per-task (§3).
	MaxThreadCount = 255
)

// RuntimeConfig lets a host application override any tunable without
// forking the library. Every getter is nil-safe and zero-value-safe: a
// nil *RuntimeConfig, or one built with `&RuntimeConfig{}`, reproduces
// every constant above. Loading these from a file or environment is
// explicitly out of scope (the "configuration loader" Non-goal) — this
// is a plain struct the host constructs directly.
type RuntimeConfig struct {
	BufferSize             int
	MaxTotalRetries        int
	RetryWait              time.Duration
	MaxHTTPRetries         int
	HTTPTimeout            time.Duration
	HTTPRetryWait          time.Duration
	SchedulerRetries       int
	SchedulerRetryWait     time.Duration
	SchedulerStopTimeout   time.Duration
	ConnectionPoolCapacity int
	SpeedSampleFloor       time.Duration
	UserAgent              string

	// StrictRangeMode governs the context factory's behavior when a
	// server's HEAD/probe response does not advertise range support
	// (spec.md §9, "Ambiguous-range HEAD behavior"). true (the default)
	// fails context creation with RangeNotSatisfiable; false falls back
	// to a single-thread context. See SPEC_FULL.md §7.
	StrictRangeMode bool
	strictRangeSet  bool
}

// WithStrictRangeMode returns a copy of cfg with StrictRangeMode set
// explicitly, distinguishing "explicitly false" from "unset" so the
// nil-safe getter below can still default true.
func (c RuntimeConfig) WithStrictRangeMode(v bool) RuntimeConfig {
	c.StrictRangeMode = v
	c.strictRangeSet = true
	return c
}

func (c *RuntimeConfig) GetBufferSize() int {
	if c == nil || c.BufferSize <= 0 {
		return BufferSize
	}
	return c.BufferSize
}

func (c *RuntimeConfig) GetMaxTotalRetries() int {
	if c == nil || c.MaxTotalRetries <= 0 {
		return MaxTotalRetries
	}
	return c.MaxTotalRetries
}

func (c *RuntimeConfig) GetRetryWait() time.Duration {
	if c == nil || c.RetryWait <= 0 {
		return RetryWait
	}
	return c.RetryWait
}

func (c *RuntimeConfig) GetMaxHTTPRetries() int {
	if c == nil || c.MaxHTTPRetries <= 0 {
		return MaxHTTPRetries
	}
	return c.MaxHTTPRetries
}

func (c *RuntimeConfig) GetHTTPTimeout() time.Duration {
	if c == nil || c.HTTPTimeout <= 0 {
		return HTTPTimeout
	}
	return c.HTTPTimeout
}

func (c *RuntimeConfig) GetHTTPRetryWait() time.Duration {
	if c == nil || c.HTTPRetryWait <= 0 {
		return HTTPRetryWait
	}
	return c.HTTPRetryWait
}

func (c *RuntimeConfig) GetSchedulerRetries() int {
	if c == nil || c.SchedulerRetries <= 0 {
		return SchedulerRetries
	}
	return c.SchedulerRetries
}

func (c *RuntimeConfig) GetSchedulerRetryWait() time.Duration {
	if c == nil || c.SchedulerRetryWait <= 0 {
		return SchedulerRetryWait
	}
	return c.SchedulerRetryWait
}

func (c *RuntimeConfig) GetSchedulerStopTimeout() time.Duration {
	if c == nil || c.SchedulerStopTimeout <= 0 {
		return SchedulerStopTimeout
	}
	return c.SchedulerStopTimeout
}

func (c *RuntimeConfig) GetConnectionPoolCapacity() int {
	if c == nil || c.ConnectionPoolCapacity <= 0 {
		return ConnectionPoolCapacity
	}
	return c.ConnectionPoolCapacity
}

func (c *RuntimeConfig) GetSpeedSampleFloor() time.Duration {
	if c == nil || c.SpeedSampleFloor <= 0 {
		return SpeedSampleFloor
	}
	return c.SpeedSampleFloor
}

func (c *RuntimeConfig) GetUserAgent() string {
	if c == nil || c.UserAgent == "" {
		return "rangedl/1.0"
	}
	return c.UserAgent
}

func (c *RuntimeConfig) GetStrictRangeMode() bool {
	if c == nil || !c.strictRangeSet {
		return true
	}
	return c.StrictRangeMode
}
