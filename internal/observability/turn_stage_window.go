package observability

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// stageTargetsP95MS are the console's latency budgets per pipeline stage.
var stageTargetsP95MS = map[string]float64{
	StageTranscribe: 1500,
	StageGenerate:   2500,
	StageSynthesize: 2000,
	StageTurnTotal:  6500,
}

type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	OverTarget  bool    `json:"over_target,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Indicators  []TurnIndicator  `json:"indicators,omitempty"`
}

// latencyRing keeps the most recent samples of one stage.
type latencyRing struct {
	samples []float64
	pos     int
	full    bool
	last    float64
}

func (r *latencyRing) push(ms float64) {
	r.samples[r.pos] = ms
	r.last = ms
	r.pos = (r.pos + 1) % len(r.samples)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *latencyRing) sorted() []float64 {
	n := r.pos
	if r.full {
		n = len(r.samples)
	}
	out := slices.Clone(r.samples[:n])
	slices.Sort(out)
	return out
}

// turnStageWindow is the rolling view served by /v1/perf/latency. The
// Prometheus histogram keeps the long-term distribution.
type turnStageWindow struct {
	mu         sync.RWMutex
	size       int
	rings      map[string]*latencyRing
	indicators map[string]int
}

func newTurnStageWindow(size int) *turnStageWindow {
	if size <= 0 {
		size = 256
	}
	w := &turnStageWindow{size: size}
	w.clear()
	return w
}

func (w *turnStageWindow) clear() {
	w.rings = make(map[string]*latencyRing)
	w.indicators = make(map[string]int)
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.rings[stage]
	if r == nil {
		r = &latencyRing{samples: make([]float64, w.size)}
		w.rings[stage] = r
	}
	r.push(ms)
}

func (w *turnStageWindow) ObserveIndicator(name string) {
	if w == nil {
		return
	}
	if name = strings.TrimSpace(name); name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

func (w *turnStageWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.clear()
	w.mu.Unlock()
}

func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]TurnStageStats, 0, len(w.rings)),
	}
	for _, stage := range slices.Sorted(maps.Keys(w.rings)) {
		samples := w.rings[stage].sorted()
		if len(samples) == 0 {
			continue
		}
		snap.Stages = append(snap.Stages, summarizeStage(stage, samples, w.rings[stage].last))
	}
	for _, name := range slices.Sorted(maps.Keys(w.indicators)) {
		if n := w.indicators[name]; n > 0 {
			snap.Indicators = append(snap.Indicators, TurnIndicator{Name: name, Count: n})
		}
	}
	return snap
}

func summarizeStage(stage string, sorted []float64, last float64) TurnStageStats {
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	st := TurnStageStats{
		Stage:       stage,
		Samples:     len(sorted),
		LastMS:      round2(last),
		AvgMS:       round2(sum / float64(len(sorted))),
		P50MS:       round2(quantile(sorted, 0.50)),
		P95MS:       round2(quantile(sorted, 0.95)),
		P99MS:       round2(quantile(sorted, 0.99)),
		TargetP95MS: stageTargetsP95MS[stage],
	}
	st.OverTarget = st.TargetP95MS > 0 && st.P95MS > st.TargetP95MS
	return st
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo+1 >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
