package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/techspec/internal/document"
	"github.com/dgallion1/techspec/internal/generate"
	"github.com/dgallion1/techspec/internal/render"
	"github.com/dgallion1/techspec/internal/source"
)

// Result describes the files a run produced.
type Result struct {
	DocumentPath string
	SidecarPath  string
	Attachments  int
	Blocks       int
	Images       int
}

// WorkerConfig holds the per-run settings shared by all workers.
type WorkerConfig struct {
	OutputDir       string
	WriteSidecar    bool
	MaxPromptTokens int
	PDFFallback     bool
}

// Worker drafts and renders one document at a time.
type Worker struct {
	gen generate.Generator
	log *slog.Logger
	cfg WorkerConfig
}

func NewWorker(gen generate.Generator, log *slog.Logger, cfg WorkerConfig) *Worker {
	return &Worker{gen: gen, log: log, cfg: cfg}
}

// Process runs a queued job and records the outcome on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	res, err := w.run(ctx, job.request, job.uploads, log, job)
	if err != nil {
		log.Error("job failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, job.Snapshot().Phase)
		return
	}
	job.Complete(res)
}

// Run generates a document synchronously.
func (w *Worker) Run(ctx context.Context, req Request, uploads []Upload) (Result, error) {
	return w.run(ctx, req, uploads, w.log, nil)
}

func (w *Worker) run(ctx context.Context, req Request, uploads []Upload, log *slog.Logger, job *Job) (Result, error) {
	phase := func(s JobStatus) {
		if job != nil {
			job.SetStatus(s, string(s))
		}
	}
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	// Phase 1: attachments. A bad attachment is noted and skipped.
	phase(StatusExtracting)
	extractor := source.Extractor{PDFFallbackPdftotext: w.cfg.PDFFallback}
	var attachments []source.Attachment
	for _, up := range uploads {
		att, err := extractor.Extract(up.Name, up.Data)
		if err != nil {
			log.Warn("attachment skipped", "name", up.Name, "error", err)
			if job != nil {
				job.AddError(fmt.Sprintf("attachment %s: %s", up.Name, err))
			}
			continue
		}
		attachments = append(attachments, att)
	}

	// Phase 2: draft.
	phase(StatusGenerating)
	prompt := generate.BuildPrompt(req.Brief(), attachments, w.cfg.MaxPromptTokens)
	log.Info("generating", "model", w.gen.Model(), "prompt_tokens", generate.EstimateTokens(prompt), "attachments", len(attachments))
	raw, err := w.gen.Generate(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, fmt.Errorf("generate: %w", generate.ErrEmptyContent)
	}
	content := generate.Sanitize(raw)
	if content == "" {
		log.Warn("no recognised sections in generated content", "raw_bytes", len(raw))
	}

	if err := os.MkdirAll(w.cfg.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}
	res := Result{Attachments: len(attachments)}

	if w.cfg.WriteSidecar {
		res.SidecarPath = filepath.Join(w.cfg.OutputDir, SidecarName(req.Title))
		if err := os.WriteFile(res.SidecarPath, []byte(content), 0o644); err != nil {
			return Result{}, fmt.Errorf("write sidecar: %w", err)
		}
	}

	// Phase 3: render.
	phase(StatusRendering)
	doc := render.Render(render.Input{
		Title:      req.Title,
		PreparedBy: req.PreparedBy,
		Content:    content,
		ImagePaths: req.ImagePaths,
	})
	path, err := render.Save(doc, filepath.Join(w.cfg.OutputDir, DocumentName(req.Title)))
	if err != nil {
		return Result{}, err
	}
	res.DocumentPath = path
	res.Blocks = len(doc.Blocks)
	res.Images = doc.Count(document.KindImage)

	if skipped := len(req.ImagePaths) - res.Images; skipped > 0 {
		log.Warn("images skipped", "requested", len(req.ImagePaths), "skipped", skipped)
	}
	log.Info("document rendered", "path", path, "blocks", res.Blocks, "tables", doc.Count(document.KindTable))
	return res, nil
}

// DocumentName returns a unique .docx file name for title.
func DocumentName(title string) string {
	return generateULID() + "_" + SafeName(title) + ".docx"
}

// SidecarName returns the plain-text copy's file name for title.
func SidecarName(title string) string {
	return SafeName(title) + ".txt"
}

// SafeName turns a title into a file name component: spaces become
// underscores and anything outside [A-Za-z0-9._-] is replaced.
func SafeName(title string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r == ' ':
			sb.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
		if sb.Len() >= 80 {
			break
		}
	}
	name := strings.Trim(sb.String(), ".")
	if name == "" {
		return "document"
	}
	return name
}
