package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/voice-ledger/internal/jobs"
)

type memStore struct {
	saved atomic.Int32
	fail  int32
}

func (m *memStore) Save(_ context.Context, name string, _ []byte) (string, error) {
	n := m.saved.Add(1)
	if n <= m.fail {
		return "", errors.New("bucket unavailable")
	}
	return "mem://" + name, nil
}

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.UploadBackupJob {
	t.Helper()
	var got *jobs.UploadBackupJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_UploadSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1))
	sink := &memStore{}
	require.NoError(t, q.Start(ctx, jobs.UploadHandler(sink)))
	defer q.Close()

	job := &jobs.UploadBackupJob{FileName: "backup_20241205_1407.json", Records: 2, Data: []byte("{}")}
	require.NoError(t, q.PublishUploadBackup(ctx, job))
	require.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "mem://backup_20241205_1407.json", done.Location)
	assert.Nil(t, done.Data, "store never keeps artifact bytes")
	assert.Equal(t, 0, done.RetryCount)
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithBackoff(time.Millisecond))
	sink := &memStore{fail: 2}
	require.NoError(t, q.Start(ctx, jobs.UploadHandler(sink)))
	defer q.Close()

	job := &jobs.UploadBackupJob{FileName: "b.json", Data: []byte("{}")}
	require.NoError(t, q.PublishUploadBackup(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Equal(t, int32(3), sink.saved.Load())
}

func TestQueue_GivesUpAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithBackoff(time.Millisecond))
	sink := &memStore{fail: 100}
	require.NoError(t, q.Start(ctx, jobs.UploadHandler(sink)))
	defer q.Close()

	job := &jobs.UploadBackupJob{FileName: "b.json", MaxRetries: 1}
	require.NoError(t, q.PublishUploadBackup(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Contains(t, failed.Error, "bucket unavailable")
}

func TestQueue_ClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Close())
	assert.Error(t, q.PublishUploadBackup(context.Background(), &jobs.UploadBackupJob{}))
	assert.Error(t, q.Start(context.Background(), nil))
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 12, 5, 10, 0, 0, 0, time.UTC)
	for i, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		require.NoError(t, s.SaveJob(ctx, &jobs.UploadBackupJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	completed, err := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, "c", completed[0].JobID, "newest first")

	page, err := s.ListJobs(ctx, jobs.JobFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].JobID)

	require.NoError(t, s.UpdateJobStatus(ctx, "b", jobs.JobStatusRetrying, "again"))
	b, err := s.GetJob(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusRetrying, b.Status)
	assert.Equal(t, "again", b.Error)

	assert.Error(t, s.SaveJob(ctx, &jobs.UploadBackupJob{}))
	_, err = s.GetJob(ctx, "missing")
	assert.Error(t, err)
}

func TestStore_Retention(t *testing.T) {
	ctx := context.Background()
	s := NewStoreWithRetention(2)
	base := time.Date(2024, 12, 5, 10, 0, 0, 0, time.UTC)
	save := func(id string, status jobs.JobStatus, minute int) {
		require.NoError(t, s.SaveJob(ctx, &jobs.UploadBackupJob{
			JobID:     id,
			Status:    status,
			CreatedAt: base.Add(time.Duration(minute) * time.Minute),
			Data:      []byte("{}"),
		}))
	}

	save("old", jobs.JobStatusCompleted, 0)
	save("running", jobs.JobStatusRunning, 1)
	save("new", jobs.JobStatusPending, 2)

	_, err := s.GetJob(ctx, "old")
	assert.Error(t, err, "oldest finished job is evicted")

	save("queued", jobs.JobStatusPending, 3)
	all, err := s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3, "unfinished jobs are never evicted")

	require.NoError(t, s.UpdateJobStatus(ctx, "running", jobs.JobStatusCompleted, ""))
	got, err := s.GetJob(ctx, "running")
	require.NoError(t, err, "the job just finished is kept")
	assert.Nil(t, got.Data)

	require.NoError(t, s.UpdateJobStatus(ctx, "new", jobs.JobStatusFailed, "boom"))
	_, err = s.GetJob(ctx, "running")
	assert.Error(t, err)
	all, err = s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
