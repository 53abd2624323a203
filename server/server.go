package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"postbot/config"
	"postbot/jobs"
	"postbot/pipeline"
	"postbot/types"
)

// Service owns the job registry and run launcher and exposes the HTTP
// surface: submit a run, poll its status, download the artifact.
type Service struct {
	cfg          *config.Config
	tracker      *jobs.Tracker
	orchestrator *pipeline.Orchestrator
}

// New creates the service root. The tracker is injected so the scheduler
// and the HTTP layer share one registry.
func New(cfg *config.Config, tracker *jobs.Tracker, orchestrator *pipeline.Orchestrator) *Service {
	return &Service{cfg: cfg, tracker: tracker, orchestrator: orchestrator}
}

// Router builds the chi router for the service
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleRoot)
	r.Post("/run", s.handleRun)
	r.Get("/status/{jobID}", s.handleStatus)
	r.Get("/download/{jobID}", s.handleDownload)
	return r
}

func (s *Service) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "postbot API is live"})
}

func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	var rc types.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if rc.Topic == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic is required"})
		return
	}
	if rc.Style == "" {
		rc.Style = "post"
	}

	job, err := s.Launch(rc)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.tracker.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleDownload serves the finished artifact, preferring the preview
// copy (which survives run-dir retention) over the workdir original.
func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, err := s.tracker.Get(chi.URLParam(r, "jobID"))
	if err != nil || job.Status != jobs.StatusDone {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "final not available"})
		return
	}

	for _, candidate := range []string{job.FinalCopy, job.Final} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			w.Header().Set("Content-Type", "video/mp4")
			http.ServeFile(w, r, candidate)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "file missing"})
}

// Launch registers a job and starts its run in the background. The run
// goroutine is observable through the tracker for its whole life: it
// flips the record to running, reports stage completions, and lands on
// done or failed — a panic is recovered into the record rather than lost.
func (s *Service) Launch(rc types.RunConfig) (*jobs.Job, error) {
	if err := os.MkdirAll(s.cfg.Paths.Content, 0755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}

	job := s.tracker.Create("")
	workdir := filepath.Join(s.cfg.Paths.Content, job.ID)
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	_ = s.tracker.Update(job.ID, func(j *jobs.Job) { j.Workdir = workdir })
	job.Workdir = workdir

	go s.runJob(job.ID, rc, workdir)
	return job, nil
}

func (s *Service) runJob(jobID string, rc types.RunConfig, workdir string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[server] Job %s panicked: %v", jobID, r)
			_ = s.tracker.Update(jobID, func(j *jobs.Job) {
				j.Status = jobs.StatusFailed
				j.Message = fmt.Sprintf("internal error: %v", r)
			})
		}
	}()

	_ = s.tracker.Update(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusRunning
		j.Message = "Starting run"
	})

	progress := func(percent int, message string) {
		_ = s.tracker.Update(jobID, func(j *jobs.Job) {
			j.Progress = percent
			j.Message = message
		})
	}

	final, err := s.orchestrator.Run(context.Background(), rc, workdir, progress)
	if err != nil {
		log.Printf("[server] Job %s failed: %v", jobID, err)
		_ = s.tracker.Update(jobID, func(j *jobs.Job) {
			j.Status = jobs.StatusFailed
			j.Message = failureMessage(err)
		})
		return
	}

	finalCopy := ""
	if rc.SavePreview {
		if copied, err := s.savePreview(jobID, final); err != nil {
			log.Printf("[server] Job %s: preview copy failed: %v", jobID, err)
		} else {
			finalCopy = copied
		}
	}

	_ = s.tracker.Update(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.Progress = 100
		j.Message = "Done"
		j.Final = final
		j.FinalCopy = finalCopy
	})
	log.Printf("[server] Job %s done: %s", jobID, final)
}

// failureMessage keeps the full underlying diagnostic so a status query
// is self-sufficient for debugging, with a recognizable prefix for the
// timeout case.
func failureMessage(err error) string {
	if errors.Is(err, pipeline.ErrStageTimeout) {
		return fmt.Sprintf("timeout: %v", err)
	}
	return err.Error()
}

func (s *Service) savePreview(jobID, finalPath string) (string, error) {
	if err := os.MkdirAll(s.cfg.Paths.Posted, 0755); err != nil {
		return "", err
	}
	dst := filepath.Join(s.cfg.Paths.Posted, jobID+".mp4")
	data, err := os.ReadFile(finalPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", err
	}
	return dst, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
