package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/techspec/internal/pipeline"
	"github.com/dgallion1/techspec/internal/source"
	"github.com/go-chi/chi/v5"
)

// handleCreateJob queues a generation job. The body is either a JSON
// request or a multipart form carrying the request (as a "request" JSON
// field or individual fields) plus "attachments" files.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var (
		req     pipeline.Request
		uploads []pipeline.Upload
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var status int
		var err error
		req, uploads, status, err = s.parseJobForm(w, r)
		if err != nil {
			jsonError(w, err.Error(), status)
			return
		}
	} else if err := s.decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	job := pipeline.NewJob(req, uploads)
	if err := s.orchestrator.Submit(job); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), status)
		return
	}
	s.log.Info("job queued", "job_id", job.ID, "title", req.Title, "attachments", len(uploads))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":       job.ID,
		"status":       pipeline.StatusQueued,
		"poll_url":     fmt.Sprintf("/api/jobs/%s", job.ID),
		"document_url": fmt.Sprintf("/api/jobs/%s/document", job.ID),
	})
}

func (s *Server) parseJobForm(w http.ResponseWriter, r *http.Request) (pipeline.Request, []pipeline.Upload, int, error) {
	var req pipeline.Request

	// Limit total request size; extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return req, nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	if raw := r.FormValue("request"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return req, nil, http.StatusBadRequest, fmt.Errorf("invalid request field: %w", err)
		}
	} else {
		form := r.MultipartForm.Value
		req = pipeline.Request{
			Title:             r.FormValue("title"),
			PreparedBy:        r.FormValue("prepared_by"),
			CodeSnippets:      form["code_snippets"],
			ErrorDescriptions: form["error_descriptions"],
			ChatsEmails:       form["chats_emails"],
			CustomCommand:     form["custom_command"],
			ImagePaths:        form["image_paths"],
		}
	}

	var (
		uploads []pipeline.Upload
		total   int64
	)
	for _, fh := range r.MultipartForm.File["attachments"] {
		filename := sanitizeFilename(fh.Filename)
		if !source.IsSupportedExtension(filename) {
			return req, nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
		}
		f, err := fh.Open()
		if err != nil {
			return req, nil, http.StatusInternalServerError, fmt.Errorf("failed to open %s", filename)
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			return req, nil, http.StatusInternalServerError, fmt.Errorf("failed to read %s", filename)
		}
		total += int64(len(data))
		if total > s.cfg.MaxUploadBytes {
			return req, nil, http.StatusRequestEntityTooLarge, fmt.Errorf("attachments exceed max size (%d bytes)", s.cfg.MaxUploadBytes)
		}
		uploads = append(uploads, pipeline.Upload{Name: filename, Data: data})
	}
	return req, uploads, 0, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleJobDocument(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted:
		serveDocxFile(w, r, job.Result().DocumentPath)
	case pipeline.StatusFailed:
		jsonError(w, "job failed: "+strings.Join(snap.Progress.Errors, "; "), http.StatusConflict)
	default:
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
