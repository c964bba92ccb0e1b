package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage names shared by the histogram and the rolling window.
const (
	StageTranscribe = "transcribe"
	StageGenerate   = "generate"
	StageSynthesize = "synthesize"
	StageTurnTotal  = "turn_total"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveRecordings     prometheus.Gauge
	StateTransitions     *prometheus.CounterVec
	ServiceErrors        *prometheus.CounterVec
	TurnsAppended        *prometheus.CounterVec
	MemoryTurns          prometheus.Gauge
	TelemetryRefreshes   prometheus.Counter
	EmergencyActivations prometheus.Counter
	BatteryPercent       prometheus.Gauge
	WSMessages           *prometheus.CounterVec
	WSWriteErrors        *prometheus.CounterVec
	StageLatency         *prometheus.HistogramVec

	stages *turnStageWindow
}

// NewMetrics registers instruments with the default registry, so each
// namespace may only be used once per process.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveRecordings: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_recordings",
			Help:      "Number of open recording sessions (0 or 1).",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Recording controller transitions by source and target state.",
		}, []string{"from", "to"}),
		ServiceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_errors_total",
			Help:      "Upstream service errors by service and code.",
		}, []string{"service", "code"}),
		TurnsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_appended_total",
			Help:      "Conversation turns appended by speaker and channel.",
		}, []string{"speaker", "channel"}),
		MemoryTurns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_turns",
			Help:      "Turns currently held in the conversation log.",
		}),
		TelemetryRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_refreshes_total",
			Help:      "Telemetry simulator steps.",
		}),
		EmergencyActivations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_activations_total",
			Help:      "Emergency reserve pack activations.",
		}),
		BatteryPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_percent",
			Help:      "Simulated main battery level.",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		WSWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_write_errors_total",
			Help:      "WebSocket write failures by reason.",
		}, []string{"reason"}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2500, 4000, 8000},
		}, []string{"stage"}),
		stages: newTurnStageWindow(256),
	}
}

// ObserveStage records d for stage in both the histogram and the rolling window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.stages.Observe(stage, ms)
}

func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m == nil {
		return TurnStageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []TurnStageStats{}}
	}
	return m.stages.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	if m == nil {
		return
	}
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
