package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/voice-ledger/internal/backup"
)

// UploadHandler stores upload jobs through store and records where each
// artifact landed.
func UploadHandler(store backup.Store) JobHandler {
	return func(ctx context.Context, job Job) error {
		upload, ok := job.(*UploadBackupJob)
		if !ok {
			return fmt.Errorf("UploadHandler: unexpected job type %s", job.GetType())
		}
		location, err := store.Save(ctx, upload.FileName, upload.Data)
		if err != nil {
			return fmt.Errorf("UploadHandler: %w", err)
		}
		upload.Location = location
		return nil
	}
}
