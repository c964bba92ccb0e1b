// Package telemetry simulates the vehicle state reported by the field unit.
//
// The Simulator is the only writer of State. Consumers receive copies.
package telemetry

import (
	"math"
	"math/rand/v2"
	"sync"
)

const (
	MinDistanceMeters = 30
	MaxDistanceMeters = 500

	// EmergencyThreshold is the battery level at or below which the reserve pack engages.
	EmergencyThreshold = 5
	// MaxEmergencyBoost caps how much reserve is transferred by one activation.
	MaxEmergencyBoost = 25

	uptimeStepMinutes = 5
	positionJitterDeg = 0.0012
	maxHeadingDelta   = 15
	maxDistanceDelta  = 10
)

// EmergencyAnnouncement is spoken by the agent whenever the reserve pack engages.
const EmergencyAnnouncement = "Emergency pack activated to reach base safely."

// State is a point-in-time view of the simulated vehicle.
type State struct {
	BatteryPercent int     `json:"battery_percent"`
	ReservePercent int     `json:"reserve_percent"`
	DistanceMeters int     `json:"distance_meters"`
	UptimeMinutes  int     `json:"uptime_minutes"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	HeadingDegrees float64 `json:"heading_degrees"`
}

// DefaultState mirrors the console's power-on readout.
func DefaultState() State {
	return State{
		BatteryPercent: 78,
		ReservePercent: 20,
		DistanceMeters: 120,
		UptimeMinutes:  42,
		Lat:            34.0522,
		Lng:            -118.2437,
		HeadingDegrees: 90,
	}
}

// RefreshResult describes one simulation step.
type RefreshResult struct {
	State              State `json:"state"`
	Drain              int   `json:"drain"`
	Boost              int   `json:"boost"`
	EmergencyActivated bool  `json:"emergency_activated"`
}

// Source is the randomness used by the simulator. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

type Option func(*Simulator)

// WithRand injects the random source, mostly for deterministic tests.
func WithRand(src Source) Option {
	return func(s *Simulator) {
		if src != nil {
			s.rng = src
		}
	}
}

// WithSeed seeds a PCG source.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

type Simulator struct {
	mu    sync.RWMutex
	state State
	rng   Source
}

func NewSimulator(initial State, opts ...Option) *Simulator {
	s := &Simulator{
		state: normalize(initial),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Simulator) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Refresh advances the simulation by one step. It never fails.
//
// The emergency rule is evaluated exactly once, after the drain, and is not
// re-checked after the boost is applied.
func (s *Simulator) Refresh() RefreshResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	res := RefreshResult{}

	res.Drain = 1 + s.rng.IntN(3)
	next.BatteryPercent = clampInt(next.BatteryPercent-res.Drain, 0, 100)

	if next.BatteryPercent <= EmergencyThreshold && next.ReservePercent > 0 {
		boost := min(next.ReservePercent, MaxEmergencyBoost)
		next.BatteryPercent = clampInt(next.BatteryPercent+boost, 0, 100)
		next.ReservePercent = max(next.ReservePercent-boost, 0)
		res.Boost = boost
		res.EmergencyActivated = true
	}

	delta := s.rng.IntN(2*maxDistanceDelta+1) - maxDistanceDelta
	next.DistanceMeters = clampInt(next.DistanceMeters+delta, MinDistanceMeters, MaxDistanceMeters)
	next.UptimeMinutes += uptimeStepMinutes

	next.Lat += jitter(s.rng)
	next.Lng += jitter(s.rng)
	turn := s.rng.IntN(2*maxHeadingDelta+1) - maxHeadingDelta
	next.HeadingDegrees = wrapHeading(next.HeadingDegrees + float64(turn))

	s.state = next
	res.State = next
	return res
}

// SafetyFlag reports "Critical" at or below 10% battery, "Nominal" otherwise.
func SafetyFlag(batteryPercent int) string {
	if batteryPercent <= 10 {
		return "Critical"
	}
	return "Nominal"
}

func normalize(st State) State {
	st.BatteryPercent = clampInt(st.BatteryPercent, 0, 100)
	st.ReservePercent = clampInt(st.ReservePercent, 0, 100)
	st.DistanceMeters = clampInt(st.DistanceMeters, MinDistanceMeters, MaxDistanceMeters)
	if st.UptimeMinutes < 0 {
		st.UptimeMinutes = 0
	}
	st.HeadingDegrees = wrapHeading(st.HeadingDegrees)
	return st
}

func jitter(rng Source) float64 {
	return (rng.Float64()*2 - 1) * positionJitterDeg
}

func wrapHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
