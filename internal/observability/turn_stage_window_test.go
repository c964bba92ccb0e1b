package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(8)
	w.Observe(StageSynthesize, 500)
	w.Observe(StageSynthesize, 700)
	w.Observe(StageSynthesize, 900)
	w.ObserveIndicator("fallback_reply")
	w.ObserveIndicator("fallback_reply")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageSynthesize {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageSynthesize)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 2000 {
		t.Fatalf("TargetP95MS = %.2f, want 2000", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v, want fallback_reply x2", snap.Indicators)
	}
}

func TestTurnStageWindowWrapsAtCapacity(t *testing.T) {
	w := newTurnStageWindow(2)
	for _, v := range []float64{10, 20, 30} {
		w.Observe(StageGenerate, v)
	}
	s := w.Snapshot().Stages[0]
	if s.Samples != 2 || s.AvgMS != 25 {
		t.Fatalf("stats = %+v, want 2 samples averaging 25", s)
	}
	w.Reset()
	if len(w.Snapshot().Stages) != 0 {
		t.Fatalf("Reset() left stages behind")
	}
}

func TestMetricsObserveStage(t *testing.T) {
	m := NewMetrics("gbird_test_observe_stage")
	m.ObserveStage(StageTranscribe, 1200*time.Millisecond)
	m.ObserveIndicator("emergency_pack")
	m.TelemetryRefreshes.Inc()

	snap := m.SnapshotTurnStages()
	if len(snap.Stages) != 1 || snap.Stages[0].LastMS != 1200 {
		t.Fatalf("stages = %+v, want transcribe at 1200ms", snap.Stages)
	}
	if got := testutil.ToFloat64(m.TelemetryRefreshes); got != 1 {
		t.Fatalf("TelemetryRefreshes = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.StageLatency); got != 1 {
		t.Fatalf("StageLatency series = %d, want 1", got)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveStage(StageGenerate, time.Second)
	if len(nilMetrics.SnapshotTurnStages().Stages) != 0 {
		t.Fatalf("nil metrics snapshot should be empty")
	}
}

func TestTurnStageWindowFlagsStagesOverTarget(t *testing.T) {
	w := newTurnStageWindow(4)
	w.Observe(StageTranscribe, 1800)
	w.Observe(StageGenerate, 400)
	w.Observe("custom", 9000)

	byStage := map[string]TurnStageStats{}
	for _, s := range w.Snapshot().Stages {
		byStage[s.Stage] = s
	}
	if !byStage[StageTranscribe].OverTarget {
		t.Fatalf("transcribe OverTarget = false, want true: %+v", byStage[StageTranscribe])
	}
	if byStage[StageGenerate].OverTarget {
		t.Fatalf("generate OverTarget = true, want false")
	}
	if s := byStage["custom"]; s.OverTarget || s.TargetP95MS != 0 {
		t.Fatalf("custom stage = %+v, want no target", s)
	}
}
