package pipeline

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/techspec/internal/generate"
	"github.com/google/uuid"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid request")

// Request is the analyst's description of the change to document.
type Request struct {
	Title             string   `json:"title"`
	PreparedBy        string   `json:"prepared_by"`
	CodeSnippets      []string `json:"code_snippets"`
	ErrorDescriptions []string `json:"error_descriptions"`
	ChatsEmails       []string `json:"chats_emails"`
	CustomCommand     []string `json:"custom_command"`
	ImagePaths        []string `json:"image_paths"`
}

// Validate checks the required fields.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.PreparedBy) == "" {
		missing = append(missing, "prepared_by")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Brief returns the prompt material of the request.
func (r Request) Brief() generate.Brief {
	return generate.Brief{
		Title:             r.Title,
		PreparedBy:        r.PreparedBy,
		CodeSnippets:      r.CodeSnippets,
		ErrorDescriptions: r.ErrorDescriptions,
		ChatsEmails:       r.ChatsEmails,
		CustomCommand:     r.CustomCommand,
	}
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required field(s): " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// Upload is a supporting file sent along with a request.
type Upload struct {
	Name string
	Data []byte
}

// JobStatus represents the state of a generation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusGenerating JobStatus = "generating"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of a single document generation.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`
	Title  string    `json:"title"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	request Request
	uploads []Upload
	result  Result
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	Attachments int      `json:"attachments"`
	Blocks      int      `json:"blocks"`
	Images      int      `json:"images"`
	Errors      []string `json:"errors"`
}

// NewJob creates a queued job for req.
func NewJob(req Request, uploads []Upload) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Status:    StatusQueued,
		Phase:     "queued",
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
		request:   req,
		uploads:   uploads,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs and returns them so callers can release
// their files.
func (s *JobStore) Cleanup() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var expired []*Job
	for id, job := range s.jobs {
		job.mu.Lock()
		stale := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if stale {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	return expired
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Complete records the result of a successful run.
func (j *Job) Complete(res Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.Progress.Attachments = res.Attachments
	j.Progress.Blocks = res.Blocks
	j.Progress.Images = res.Images
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Result returns the run result; DocumentPath is empty until the job
// completes.
func (j *Job) Result() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Title     string    `json:"title"`
	Document  string    `json:"document,omitempty"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	var doc string
	if j.result.DocumentPath != "" {
		doc = filepath.Base(j.result.DocumentPath)
	}
	return JobSnapshot{
		ID:       j.ID,
		Status:   j.Status,
		Phase:    j.Phase,
		Title:    j.Title,
		Document: doc,
		Progress: Progress{
			Attachments: j.Progress.Attachments,
			Blocks:      j.Progress.Blocks,
			Images:      j.Progress.Images,
			Errors:      errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
