package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/voice-ledger/internal/jobs"
)

// DefaultRetention caps how many jobs a Store remembers.
const DefaultRetention = 500

// Store keeps backup job state in memory; it is lost on restart. Artifact
// bytes are dropped on save. Once more than Retention jobs are held, the
// oldest finished ones are forgotten; pending and running jobs always stay.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*jobs.UploadBackupJob
	retention int
}

// NewStore returns a store with DefaultRetention.
func NewStore() *Store {
	return NewStoreWithRetention(DefaultRetention)
}

// NewStoreWithRetention returns a store remembering at most n jobs; n <= 0
// means unbounded.
func NewStoreWithRetention(n int) *Store {
	return &Store{byID: make(map[string]*jobs.UploadBackupJob), retention: n}
}

func (s *Store) SaveJob(_ context.Context, job *jobs.UploadBackupJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	stored := *job
	stored.Data = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[job.JobID] = &stored
	s.evictLocked(job.JobID)
	return nil
}

func finished(st jobs.JobStatus) bool {
	return st == jobs.JobStatusCompleted || st == jobs.JobStatusFailed
}

// evictLocked drops the oldest finished jobs other than keep until the
// store is within retention.
func (s *Store) evictLocked(keep string) {
	excess := len(s.byID) - s.retention
	if s.retention <= 0 || excess <= 0 {
		return
	}
	var done []*jobs.UploadBackupJob
	for _, j := range s.byID {
		if finished(j.Status) && j.JobID != keep {
			done = append(done, j)
		}
	}
	sort.Slice(done, func(i, k int) bool { return done[i].CreatedAt.Before(done[k].CreatedAt) })
	for i := 0; i < excess && i < len(done); i++ {
		delete(s.byID, done[i].JobID)
	}
}

func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.UploadBackupJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: job not found: %s", jobID)
	}
	out := *job
	return &out, nil
}

// ListJobs returns copies of the matching jobs, newest first, paged by
// filter.Offset and filter.Limit.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.UploadBackupJob, error) {
	s.mu.RLock()
	matched := make([]*jobs.UploadBackupJob, 0, len(s.byID))
	for _, job := range s.byID {
		if filter.Status == "" || job.Status == filter.Status {
			out := *job
			matched = append(matched, &out)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, k int) bool { return matched[i].CreatedAt.After(matched[k].CreatedAt) })

	from := min(max(filter.Offset, 0), len(matched))
	to := len(matched)
	if filter.Limit > 0 {
		to = min(from+filter.Limit, to)
	}
	return matched[from:to], nil
}

func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: job not found: %s", jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if finished(status) {
		s.evictLocked(jobID)
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
