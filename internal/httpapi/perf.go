package httpapi

import (
	"net/http"
	"strings"

	"github.com/ent0n29/gbird/internal/observability"
)

// handlePerfLatency reports the rolling per-stage latency window. ?stage=
// narrows the report to one pipeline stage.
func (s *Server) handlePerfLatency(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.SnapshotTurnStages()
	if stage := strings.TrimSpace(r.URL.Query().Get("stage")); stage != "" {
		kept := make([]observability.TurnStageStats, 0, 1)
		for _, st := range snap.Stages {
			if st.Stage == stage {
				kept = append(kept, st)
			}
		}
		snap.Stages = kept
	}
	if snap.Stages == nil {
		snap.Stages = []observability.TurnStageStats{}
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePerfReset(w http.ResponseWriter, _ *http.Request) {
	s.metrics.ResetTurnStages()
	w.WriteHeader(http.StatusNoContent)
}
