package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dgallion1/techspec/internal/docxwriter"
	"github.com/dgallion1/techspec/internal/document"
	"github.com/dgallion1/techspec/internal/pipeline"
	"github.com/dgallion1/techspec/internal/render"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// handleGenerate is the legacy single-call endpoint: it drafts,
// renders and returns the document in one request. Failures use the
// {"status":"error","message":...} shape existing clients expect.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := s.decodeJSON(w, r, &req); err != nil {
		legacyError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := req.Validate(); err != nil {
		legacyError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	res, err := s.orchestrator.Run(r.Context(), req, nil)
	if err != nil {
		s.log.Error("generate failed", "title", req.Title, "error", err)
		legacyError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	serveDocxFile(w, r, res.DocumentPath)
}

type renderRequest struct {
	Title      string   `json:"title"`
	PreparedBy string   `json:"prepared_by"`
	Content    string   `json:"content"`
	ImagePaths []string `json:"image_paths"`
}

// handleRender renders caller-supplied content without calling a model.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc := render.Render(render.Input{
		Title:      req.Title,
		PreparedBy: req.PreparedBy,
		Content:    req.Content,
		ImagePaths: req.ImagePaths,
	})
	var buf bytes.Buffer
	if err := docxwriter.Write(&buf, doc); err != nil {
		s.log.Error("render failed", "error", err)
		jsonError(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("rendered", "blocks", len(doc.Blocks), "tables", doc.Count(document.KindTable), "images", doc.Count(document.KindImage))

	name := pipeline.SafeName(req.Title) + ".docx"
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// serveDocxFile streams a rendered document as an attachment.
func serveDocxFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		jsonError(w, "document not available", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "document not available", http.StatusNotFound)
		return
	}
	name := filepath.Base(path)
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func legacyError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": msg})
}
