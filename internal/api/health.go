package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type healthResponse struct {
	Status string `json:"status"`
	Jobs   int    `json:"jobs"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok", Jobs: len(s.jobs.Jobs())}); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
