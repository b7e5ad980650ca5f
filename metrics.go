package voteauth

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID int

const (
	// MetricLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the authentication engine.
	MetricLoginFailure
	// MetricLoginLocked is an exported constant or variable used by the authentication engine.
	MetricLoginLocked
	// MetricTwoFactorRequired is an exported constant or variable used by the authentication engine.
	MetricTwoFactorRequired
	// MetricTwoFactorSuccess is an exported constant or variable used by the authentication engine.
	MetricTwoFactorSuccess
	// MetricTwoFactorFailure is an exported constant or variable used by the authentication engine.
	MetricTwoFactorFailure
	// MetricLogout is an exported constant or variable used by the authentication engine.
	MetricLogout
	// MetricTokenCreated is an exported constant or variable used by the authentication engine.
	MetricTokenCreated
	// MetricRegisterSuccess is an exported constant or variable used by the authentication engine.
	MetricRegisterSuccess
	// MetricRegisterDuplicate is an exported constant or variable used by the authentication engine.
	MetricRegisterDuplicate
	// MetricRegisterInvalid is an exported constant or variable used by the authentication engine.
	MetricRegisterInvalid
	// MetricAccountBlocked is an exported constant or variable used by the authentication engine.
	MetricAccountBlocked
	// MetricEnrollmentStarted is an exported constant or variable used by the authentication engine.
	MetricEnrollmentStarted
	// MetricEnrollmentConfirmed is an exported constant or variable used by the authentication engine.
	MetricEnrollmentConfirmed
	// MetricResetRequested is an exported constant or variable used by the authentication engine.
	MetricResetRequested
	// MetricResetConfirmed is an exported constant or variable used by the authentication engine.
	MetricResetConfirmed

	metricIDCount
)

// Metrics holds atomic counters for the engine's observable outcomes. When
// disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig].
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled {
		return
	}
	if id < 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get describes the get operation and its observable behavior.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot describes the snapshot operation and its observable behavior.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
