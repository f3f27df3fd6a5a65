package api

import (
	"net/http"
	"time"
)

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()

	now := time.Now()
	if s.lastReadyStatusSet && now.Sub(s.lastReadyStatusAt) < s.readyDebounce {
		s.respondReadiness(w, s.lastReadyStatus, nil)
		return
	}

	start := time.Now()
	dbOK := true
	checks := map[string]any{}
	if err := s.svc.Source().Ping(r.Context()); err != nil {
		dbOK = false
		checks["database"] = map[string]any{"ok": false, "error": err.Error()}
		s.log("WARN", "Readiness check failed", "component", "database", "error", err)
	} else {
		checks["database"] = map[string]any{"ok": true}
	}
	ReadinessLatencySeconds.WithLabelValues("database").Observe(time.Since(start).Seconds())
	ReadinessStatus.WithLabelValues("database").Set(boolGauge(dbOK))

	if s.scheduler != nil {
		checks["schedules"] = map[string]any{"entries": len(s.scheduler.Entries())}
	}

	s.lastReadyStatus = dbOK
	s.lastReadyStatusAt = now
	s.lastReadyStatusSet = true

	s.respondReadiness(w, dbOK, checks)
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func statusFromBool(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (s *Server) respondReadiness(w http.ResponseWriter, ok bool, checks map[string]any) {
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"version": s.version,
		"status":  statusFromBool(ok),
		"time":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if checks != nil {
		resp["checks"] = checks
	}

	writeJSON(w, status, resp)
}
