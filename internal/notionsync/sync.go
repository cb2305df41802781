// Package notionsync mirrors the ledger into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

// PageSize is the page size of database queries.
const PageSize = 100

// Reader is the part of a ledger the exporter needs.
type Reader interface {
	ReadAll(ctx context.Context) ([]ledger.Entry, error)
}

// Syncer exports ledger rows to one Notion database.
type Syncer struct {
	Ledger     Reader
	Notion     NotionService
	DatabaseID string
	// DryRun logs planned changes without calling the write endpoints.
	DryRun bool
}

// Result counts what a sync did (or would do on a dry run).
type Result struct {
	Rows     int
	Created  int
	Archived int
	Skipped  int
	Failed   int
}

// Sync makes the database match the ledger: pages whose key no longer
// matches a row are archived, rows without a page are created. Per-page
// failures are logged and counted.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	log := logger.FromContext(ctx)

	entries, err := s.Ledger.ReadAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("Sync: reading ledger: %w", err)
	}
	keys := Keys(entries)
	res := Result{Rows: len(entries)}

	valid := make(map[string]bool, len(keys))
	for _, k := range keys {
		valid[k] = true
	}

	pages, err := queryAllPages(ctx, s.Notion, s.DatabaseID)
	if err != nil {
		return res, fmt.Errorf("Sync: %w", err)
	}
	log.Info().Int("rows", len(entries)).Int("pages", len(pages)).Bool("dry_run", s.DryRun).Msg("Starting Notion sync")

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		key := pageKey(page)
		if key != "" && valid[key] && !existing[key] {
			existing[key] = true
			continue
		}

		// Stale, unkeyed or duplicate page.
		if s.DryRun {
			log.Info().Str("key", key).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive Notion page")
			res.Archived++
			continue
		}
		if err := s.Notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for i, e := range entries {
		key := keys[i]
		if existing[key] {
			res.Skipped++
			continue
		}
		if s.DryRun {
			log.Info().Int("row", e.Row).Str("key", key).Msg("[DRY RUN] Would create Notion page")
			res.Created++
			continue
		}
		page, err := s.Notion.CreatePage(ctx, s.DatabaseID, TransactionToProperties(e.Transaction, key))
		if err != nil {
			log.Warn().Err(err).Int("row", e.Row).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Int("row", e.Row).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("archived", res.Archived).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Notion sync completed")
	return res, nil
}

// queryAllPages follows the cursor until the database is exhausted.
func queryAllPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	var (
		pages  []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: PageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
