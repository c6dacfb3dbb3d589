package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/techspec/internal/config"
	"github.com/dgallion1/techspec/internal/generate"
	"github.com/dgallion1/techspec/internal/pipeline"
	"github.com/fumiama/go-docx"
)

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Model() string { return "fake-model" }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

const reply = "Here you go!\n**Purpose**\nFix the posting run.\n**Objects Changed**\n| Object | Type |\n| ZFI_POST | PROG |"

func newTestServer(t *testing.T, gen generate.Generator, mutate func(*config.Config)) (*Server, *generate.LLMStats) {
	t.Helper()
	cfg := config.Defaults()
	cfg.OutputDir = t.TempDir()
	cfg.WriteTextSidecar = false
	cfg.MaxUploadBytes = 1 << 20
	if mutate != nil {
		mutate(&cfg)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats := generate.NewLLMStats(time.Hour)
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Workers:      1,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
		Worker:       pipeline.WorkerConfig{OutputDir: cfg.OutputDir},
	}, gen, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, stats, log, cfg), stats
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func paragraphsOf(t *testing.T, data []byte) []string {
	t.Helper()
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parse docx: %v", err)
	}
	var out []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			out = append(out, p.String())
		}
	}
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{}, func(c *config.Config) { c.APIKey = "secret" })
	rec := do(t, s, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestGenerate_Legacy(t *testing.T) {
	gen := &fakeGenerator{reply: reply}
	s, _ := newTestServer(t, gen, nil)

	body := `{"title":"Posting fix","prepared_by":"R. Analyst","code_snippets":["PERFORM post."],"unknown":1}`
	rec := do(t, s, http.MethodPost, "/", strings.NewReader(body), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != docxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "_Posting_fix.docx") {
		t.Errorf("unexpected disposition %q", cd)
	}

	paras := paragraphsOf(t, rec.Body.Bytes())
	want := []string{"Technical Specification", "Title: Posting fix", "Prepared By: R. Analyst", "1. Purpose", "Fix the posting run.", "6. Objects Changed"}
	if len(paras) < len(want) {
		t.Fatalf("expected at least %d paragraphs, got %q", len(want), paras)
	}
	for i, w := range want {
		if paras[i] != w {
			t.Errorf("paragraph[%d]: expected %q, got %q", i, w, paras[i])
		}
	}
	if !strings.Contains(gen.lastPrompt(), "PERFORM post.") {
		t.Error("expected code snippet in prompt")
	}
}

func TestGenerate_LegacyErrors(t *testing.T) {
	tests := []struct {
		name   string
		gen    *fakeGenerator
		body   string
		status int
	}{
		{"bad json", &fakeGenerator{reply: reply}, `{`, http.StatusUnprocessableEntity},
		{"missing fields", &fakeGenerator{reply: reply}, `{"title":"T"}`, http.StatusUnprocessableEntity},
		{"empty content", &fakeGenerator{reply: "   "}, `{"title":"T","prepared_by":"A"}`, http.StatusInternalServerError},
		{"generator error", &fakeGenerator{err: errors.New("quota exceeded")}, `{"title":"T","prepared_by":"A"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.gen, nil)
			rec := do(t, s, http.MethodPost, "/", strings.NewReader(tt.body), "application/json")
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["status"] != "error" || resp["message"] == "" {
				t.Errorf("expected legacy error shape, got %v", resp)
			}
		})
	}
}

func TestRender(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestServer(t, gen, nil)

	body := `{"title":"Posting fix","prepared_by":"A","content":"Scope\n* **bold** item\n1. first"}`
	rec := do(t, s, http.MethodPost, "/api/render", strings.NewReader(body), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `"Posting_fix.docx"`) {
		t.Errorf("unexpected disposition %q", cd)
	}
	paras := paragraphsOf(t, rec.Body.Bytes())
	want := []string{"2. Scope", "•\tbold item", "1.\tfirst"}
	for i, w := range want {
		if got := paras[3+i]; got != w {
			t.Errorf("paragraph[%d]: expected %q, got %q", 3+i, w, got)
		}
	}
	if gen.lastPrompt() != "" {
		t.Error("expected render to skip the generator")
	}
}

func TestRender_BodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{}, func(c *config.Config) { c.MaxUploadBytes = 16 })
	rec := do(t, s, http.MethodPost, "/api/render", strings.NewReader(`{"content":"`+strings.Repeat("x", 64)+`"}`), "application/json")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "exceeds") {
		t.Fatalf("expected size error, got %d: %s", rec.Code, rec.Body.String())
	}
}

func waitDone(t *testing.T, s *Server, id string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(t, s, http.MethodGet, "/api/jobs/"+id, nil, "")
		var snap map[string]any
		json.Unmarshal(rec.Body.Bytes(), &snap)
		if st := snap["status"]; st == string(pipeline.StatusCompleted) || st == string(pipeline.StatusFailed) {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for job")
	return nil
}

func TestJobs_JSONLifecycle(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{reply: reply}, nil)

	rec := do(t, s, http.MethodPost, "/api/jobs", strings.NewReader(`{"title":"T","prepared_by":"A"}`), "application/json")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	json.Unmarshal(rec.Body.Bytes(), &created)
	id := created["job_id"]
	if id == "" || created["poll_url"] != "/api/jobs/"+id {
		t.Fatalf("unexpected create response %v", created)
	}

	snap := waitDone(t, s, id)
	if snap["status"] != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed job, got %v", snap)
	}

	rec = do(t, s, http.MethodGet, "/api/jobs/"+id+"/document", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != docxContentType {
		t.Fatalf("expected document download, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if paras := paragraphsOf(t, rec.Body.Bytes()); paras[1] != "Title: T" {
		t.Errorf("unexpected title paragraph %q", paras[1])
	}
}

func TestJobs_Multipart(t *testing.T) {
	gen := &fakeGenerator{reply: reply}
	s, _ := newTestServer(t, gen, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", "Dump analysis")
	mw.WriteField("prepared_by", "A")
	mw.WriteField("error_descriptions", "Short dump at 02:00")
	mw.WriteField("error_descriptions", "Posting blocked")
	fw, _ := mw.CreateFormFile("attachments", "../../ST22.txt")
	fw.Write([]byte("MESSAGE_TYPE_X raised in ZFI_POST"))
	mw.Close()

	rec := do(t, s, http.MethodPost, "/api/jobs", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	json.Unmarshal(rec.Body.Bytes(), &created)
	snap := waitDone(t, s, created["job_id"])
	if snap["status"] != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed job, got %v", snap)
	}

	prompt := gen.lastPrompt()
	for _, want := range []string{"- Short dump at 02:00\n- Posting blocked", "Attachment ST22.txt:", "MESSAGE_TYPE_X"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestJobs_MultipartUnsupportedAttachment(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{reply: reply}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("request", `{"title":"T","prepared_by":"A"}`)
	fw, _ := mw.CreateFormFile("attachments", "diagram.vsdx")
	fw.Write([]byte{0})
	mw.Close()

	rec := do(t, s, http.MethodPost, "/api/jobs", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), ".vsdx") {
		t.Fatalf("expected unsupported type error, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJobs_Errors(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{err: errors.New("boom")}, nil)

	rec := do(t, s, http.MethodPost, "/api/jobs", strings.NewReader(`{"title":""}`), "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for invalid request, got %d", rec.Code)
	}

	if rec := do(t, s, http.MethodGet, "/api/jobs/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/jobs/nope/document", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job document, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/jobs", strings.NewReader(`{"title":"T","prepared_by":"A"}`), "application/json")
	var created map[string]string
	json.Unmarshal(rec.Body.Bytes(), &created)
	snap := waitDone(t, s, created["job_id"])
	if snap["status"] != string(pipeline.StatusFailed) {
		t.Fatalf("expected failed job, got %v", snap)
	}
	rec = do(t, s, http.MethodGet, "/api/jobs/"+created["job_id"]+"/document", nil, "")
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("expected 409 with cause, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLLMStats(t *testing.T) {
	s, stats := newTestServer(t, &fakeGenerator{}, nil)
	stats.Record("fake-model", 120*time.Millisecond, generate.OutcomeOK)
	stats.Record("fake-model", 80*time.Millisecond, generate.OutcomeEmpty)

	rec := do(t, s, http.MethodGet, "/api/stats/llm", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Model string                 `json:"model"`
		Stats generate.StatsSnapshot `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Model != "fake-model" || resp.Stats.Count != 2 || resp.Stats.MaxMs != 120 {
		t.Errorf("unexpected stats %+v", resp)
	}
	if resp.Stats.Outcomes[generate.OutcomeEmpty] != 1 || resp.Stats.Models["fake-model"].MinMs != 80 {
		t.Errorf("expected per-outcome and per-model breakdown, got %+v", resp.Stats)
	}
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{}, func(c *config.Config) { c.APIKey = "secret" })

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{}, func(c *config.Config) {
		c.CORSAllowedOrigins = []string{"https://portal.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/render", nil)
	req.Header.Set("Origin", "https://portal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example" {
		t.Errorf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"notes.txt", "notes.txt"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\a\dump.log`, "dump.log"},
		{"", "unnamed"},
		{"a..b.md", "a_b.md"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
