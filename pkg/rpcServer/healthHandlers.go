package rpcServer

import (
	"net/http"
)

func (s *RpcServer) HealthCheck(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *RpcServer) ReadyCheck(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if s.readinessCheck != nil {
		if err := s.readinessCheck(r.Context()); err != nil {
			s.Logger.Sugar().Warnw("Readiness check failed", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
