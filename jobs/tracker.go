package jobs

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one run
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned for unknown job ids
var ErrNotFound = errors.New("job not found")

// Job is the mutable record of one run. The orchestrator is the only
// writer while a run is in flight; status and download queries read it.
type Job struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message"`
	Workdir   string    `json:"workdir"`
	Final     string    `json:"final,omitempty"`
	FinalCopy string    `json:"final_copy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Tracker is the process-wide job registry. It is injected into the
// server and scheduler rather than living as a package global, and it
// holds its lock only around map access — never across a pipeline stage.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*Job)}
}

// Create registers a new queued job and returns its id. Ids are random
// (uuid-derived 12 hex chars), never sequential.
func (t *Tracker) Create(workdir string) *Job {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	job := &Job{
		ID:        id,
		Status:    StatusQueued,
		Message:   "Queued",
		Workdir:   workdir,
		CreatedAt: time.Now().UTC(),
	}
	t.mu.Lock()
	t.jobs[id] = job
	t.mu.Unlock()

	snapshot := *job
	return &snapshot
}

// Get returns a consistent snapshot of a job record. The copy means a
// reader never observes a half-applied update.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// Update applies mutate to the record under the lock, so concurrent
// readers see either the old or the new state, never a mix.
func (t *Tracker) Update(id string, mutate func(*Job)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	mutate(job)
	return nil
}

// Len reports how many jobs the tracker holds.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}
