package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/tablesnap/internal/scheduler"
)

type listJobsResponse struct {
	Jobs []scheduler.JobStatus `json:"jobs"`
}

type triggerResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.Jobs()
	if jobs == nil {
		jobs = []scheduler.JobStatus{}
	}
	s.writeJSON(w, http.StatusOK, listJobsResponse{Jobs: jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	st, ok := s.jobs.Job(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := s.jobs.Trigger(r.Context(), name)
	switch {
	case err == nil:
		recordTrigger(name, triggerStarted)
		s.logger.Info("manual run started", "job", name, "request_id", requestID(r))
		s.writeJSON(w, http.StatusAccepted, triggerResponse{Job: name, Status: "started"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		recordTrigger(name, triggerUnknown)
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, scheduler.ErrJobRunning):
		recordTrigger(name, triggerConflict)
		s.writeError(w, http.StatusConflict, "job is already running")
	default:
		recordTrigger(name, triggerError)
		s.logger.Error("trigger job", "job", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start run")
	}
}
