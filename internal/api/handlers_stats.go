package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleOCRStats(w http.ResponseWriter, r *http.Request) {
	if s.pageStats == nil {
		jsonError(w, "ocr stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"engine":      s.engine,
		"page_stats":  s.pageStats.Report(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"jobs":        s.orchestrator.Stats(),
	})
}
