package imports

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of an import job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusSerializing JobStatus = "serializing"
	StatusDelivering  JobStatus = "delivering"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusDupSkipped  JobStatus = "duplicate_skipped"
)

// Job tracks one file import.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`
	// Session, when set, receives the converted content as external
	// content once the import finishes.
	Session string `json:"session,omitempty"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	markdown string
	decision string
	errors   []string
}

// Progress counts what the import produced.
type Progress struct {
	Blocks   int      `json:"blocks"`
	Headings int      `json:"headings"`
	Bytes    int      `json:"bytes"`
	Errors   []string `json:"errors"`
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

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
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

// SetResult records the converted markdown and its shape.
func (j *Job) SetResult(markdown string, blocks, headings int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.markdown = markdown
	j.Progress.Blocks = blocks
	j.Progress.Headings = headings
	j.Progress.Bytes = len(markdown)
	j.ContentHash = ContentHashHex([]byte(markdown))
	j.UpdatedAt = time.Now()
}

// SetDecision records what the target session did with the content.
func (j *Job) SetDecision(d string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.decision = d
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Markdown returns the converted content.
func (j *Job) Markdown() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.markdown
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Session     string    `json:"session,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	Markdown    string    `json:"markdown,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state. The markdown is only
// included once the job completed.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	snap := JobSnapshot{
		ID:       j.ID,
		Session:  j.Session,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Title:    j.Title,
		Progress: Progress{
			Blocks:   j.Progress.Blocks,
			Headings: j.Progress.Headings,
			Bytes:    j.Progress.Bytes,
			Errors:   append(errs[:0:0], errs...),
		},
		ContentHash: j.ContentHash,
		Decision:    j.decision,
	}
	if j.Status == StatusCompleted || j.Status == StatusDupSkipped {
		snap.Markdown = j.markdown
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
