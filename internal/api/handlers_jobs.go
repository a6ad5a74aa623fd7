package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pdfocr/internal/doctree"
	"github.com/dgallion1/pdfocr/internal/pipeline"
	"github.com/dgallion1/pdfocr/internal/render"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"jobs": s.orchestrator.ListJobs()})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   snap.ID,
		"filename": snap.Filename,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"cached":   snap.Cached,
		"progress": snap.Progress,
	})
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	renderer, err := rendererFor(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	s.writeResult(w, job, renderer)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.DeleteJob(jobID) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"job_id": jobID, "deleted": true})
}

// writeResult renders a finished job. Unfinished jobs get 409, failed jobs
// 422 with the recorded errors.
func (s *Server) writeResult(w http.ResponseWriter, job *pipeline.Job, renderer render.Renderer) {
	snap := job.Snapshot()
	switch {
	case snap.Status == pipeline.StatusFailed:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"job_id": snap.ID,
			"status": snap.Status,
			"phase":  snap.Phase,
			"errors": snap.Progress.Errors,
		})
		return
	case !snap.Status.Terminal():
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"job_id": snap.ID,
			"status": snap.Status,
			"error":  "job not finished",
		})
		return
	}

	res := job.Result()
	if res == nil {
		jsonError(w, "result unavailable", http.StatusInternalServerError)
		return
	}
	tree := doctree.FromPages(snap.Title, res.Pages, res.Failed)

	var buf bytes.Buffer
	if err := renderer.Render(&buf, tree); err != nil {
		s.log.Error("render failed", "job_id", snap.ID, "error", err)
		jsonError(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", renderer.ContentType())
	w.Header().Set("X-Job-Status", string(snap.Status))
	if _, isDocx := renderer.(*render.DOCXRenderer); isDocx {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Title+renderer.Extension()))
	}
	w.Write(buf.Bytes())
}

func rendererFor(format string) (render.Renderer, error) {
	if !render.IsSupportedFormat(format) {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return render.ForFormat(format)
}
