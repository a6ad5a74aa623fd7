package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfocr/internal/pipeline"
	"github.com/dgallion1/pdfocr/internal/raster"
)

// errTooLarge marks uploads above MaxUploadBytes.
var errTooLarge = errors.New("file exceeds max size")

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	job, code, err := s.jobFromRequest(w, r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/ocr/%s/status", job.ID),
	})
}

// handleSyncSubmit queues a job and waits for it, returning the result in the
// requested format. Cancelling the request leaves the job running.
func (s *Server) handleSyncSubmit(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	renderer, err := rendererFor(format)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, code, err := s.jobFromRequest(w, r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	select {
	case <-job.Done():
	case <-r.Context().Done():
		return
	}
	s.writeResult(w, job, renderer)
}

func (s *Server) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		data, err := s.readUpload(fh)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(filename, titleFromFilename(filename), data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/ocr/%s/status", job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

// jobFromRequest reads a single-file multipart upload into a new job. On
// error it returns the HTTP status to report.
func (s *Server) jobFromRequest(w http.ResponseWriter, r *http.Request) (*pipeline.Job, int, error) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	_, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
	}

	opts, err := s.jobOptions(r)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	filename := sanitizeFilename(header.Filename)
	data, err := s.readUpload(header)
	if errors.Is(err, errTooLarge) {
		return nil, http.StatusRequestEntityTooLarge, err
	}
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	title := r.FormValue("title")
	if title == "" {
		title = titleFromFilename(filename)
	}
	return pipeline.NewJob(filename, title, data, opts), 0, nil
}

// readUpload reads one uploaded file and checks its size and content type.
func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, s.cfg.MaxUploadBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	if !raster.IsSupported(data) {
		return nil, fmt.Errorf("unsupported file type: %s", raster.DetectType(data))
	}
	return data, nil
}

// jobOptions applies form overrides to the configured defaults.
func (s *Server) jobOptions(r *http.Request) (pipeline.JobOptions, error) {
	opts := pipeline.JobOptions{
		Config:   s.cfg.OCR(),
		MaxPages: s.cfg.MaxPages,
		Workers:  s.cfg.PageWorkers,
	}

	if v := r.FormValue("language"); v != "" {
		opts.Config.Language = v
	}
	if err := formInt(r, "psm", &opts.Config.PageSegMode); err != nil {
		return opts, err
	}
	if err := formInt(r, "oem", &opts.Config.EngineMode); err != nil {
		return opts, err
	}
	if err := opts.Config.Validate(); err != nil {
		return opts, err
	}

	if err := formInt(r, "max_pages", &opts.MaxPages); err != nil {
		return opts, err
	}
	if opts.MaxPages < 0 {
		return opts, fmt.Errorf("max_pages must not be negative")
	}
	if err := formInt(r, "workers", &opts.Workers); err != nil {
		return opts, err
	}
	if opts.Workers < 1 {
		return opts, fmt.Errorf("workers must be at least 1")
	}

	if v := r.FormValue("partial"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("partial: %q is not a boolean", v)
		}
		opts.ContinueOnError = b
	}
	return opts, nil
}

func formInt(r *http.Request, key string, dst *int) error {
	v := r.FormValue(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

func titleFromFilename(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
