package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/pdfocr/internal/ocr"
)

// JobStatus represents the state of an OCR job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusArchiving  JobStatus = "archiving"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions follow.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// JobOptions are the per-job recognition settings.
type JobOptions struct {
	Config          ocr.Config `json:"config"`
	MaxPages        int        `json:"max_pages"`
	Workers         int        `json:"workers"`
	ContinueOnError bool       `json:"continue_on_error"`
}

// Job tracks the state of a single document OCR run.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`
	Title    string `json:"title"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Options  JobOptions `json:"options"`
	Progress Progress   `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	Cached      bool      `json:"cached"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   *ocr.Result
	errors   []string
	done     chan struct{}
	doneOnce sync.Once
}

// Progress tracks processing progress.
type Progress struct {
	TotalPages     int      `json:"total_pages"`
	PagesProcessed int      `json:"pages_processed"`
	PagesFailed    int      `json:"pages_failed"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job holding data.
func NewJob(filename, title string, data []byte, opts JobOptions) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Title:     title,
		Status:    StatusQueued,
		Phase:     "queued",
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
		done:      make(chan struct{}),
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

// Delete removes a job and reports whether it existed.
func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	snaps := make([]JobSnapshot, len(jobs))
	for i, j := range jobs {
		snaps[i] = j.Snapshot()
	}
	sort.Slice(snaps, func(i, k int) bool { return snaps[i].CreatedAt.After(snaps[k].CreatedAt) })
	return snaps
}

// Cleanup removes finished jobs not updated within the TTL. Queued or running
// jobs are kept regardless of age.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// SetStatus updates job status atomically. Terminal statuses release waiters
// on Done.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
	j.mu.Unlock()
	if status.Terminal() {
		j.doneOnce.Do(func() {
			if j.done != nil {
				close(j.done)
			}
		})
	}
}

// SetPhase updates the phase without changing the status.
func (j *Job) SetPhase(phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalPages records the number of pages being recognized.
func (j *Job) SetTotalPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = n
	j.UpdatedAt = time.Now()
}

// IncrPagesProcessed counts one finished page.
func (j *Job) IncrPagesProcessed(failed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PagesProcessed++
	if failed {
		j.Progress.PagesFailed++
	}
	j.UpdatedAt = time.Now()
}

// SetContentHash records the document hash used for caching.
func (j *Job) SetContentHash(hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
}

// FileData returns the raw document bytes, nil once the job has finished.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetResult stores the OCR result and releases the document bytes.
func (j *Job) SetResult(res *ocr.Result, cached bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.Cached = cached
	j.fileData = nil
	if res != nil {
		j.Progress.TotalPages = res.PageCount
		j.Progress.PagesProcessed = res.PageCount
		j.Progress.PagesFailed = len(res.Failed)
	}
	j.UpdatedAt = time.Now()
}

// ReleaseData drops the document bytes without storing a result.
func (j *Job) ReleaseData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// Result returns the OCR result, nil until the job has one.
func (j *Job) Result() *ocr.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string     `json:"job_id"`
	Filename  string     `json:"filename"`
	Title     string     `json:"title"`
	Status    JobStatus  `json:"status"`
	Phase     string     `json:"phase"`
	Options   JobOptions `json:"options"`
	Progress  Progress   `json:"progress"`
	Cached    bool       `json:"cached"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Title:    j.Title,
		Status:   j.Status,
		Phase:    j.Phase,
		Options:  j.Options,
		Progress: Progress{
			TotalPages:     j.Progress.TotalPages,
			PagesProcessed: j.Progress.PagesProcessed,
			PagesFailed:    j.Progress.PagesFailed,
			Errors:         errs,
		},
		Cached:    j.Cached,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
