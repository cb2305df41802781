// Package jobs runs ledger backups asynchronously.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeUploadBackup stores a backup artifact in remote storage.
	JobTypeUploadBackup JobType = "upload_backup"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is waiting for another attempt.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job does not set MaxRetries.
const DefaultMaxRetries = 3

// UploadBackupJob uploads one encoded backup artifact.
type UploadBackupJob struct {
	JobID string `json:"job_id"`

	// FileName is the artifact name, e.g. backup_20241205_1407.json.
	FileName string `json:"file_name"`

	// Records is the number of ledger rows in the artifact.
	Records int `json:"records"`

	// Data is the encoded artifact. It is not exposed through the API.
	Data []byte `json:"-"`

	// Location is where the artifact was stored, set on success.
	Location string `json:"location,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *UploadBackupJob) GetID() string        { return j.JobID }
func (j *UploadBackupJob) GetType() JobType     { return JobTypeUploadBackup }
func (j *UploadBackupJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishUploadBackup(ctx context.Context, job *UploadBackupJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each one.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error schedules a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *UploadBackupJob) error
	GetJob(ctx context.Context, jobID string) (*UploadBackupJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*UploadBackupJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
