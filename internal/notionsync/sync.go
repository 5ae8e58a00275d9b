// Package notionsync pushes per-user ledger summaries into a Notion
// database: one page per user, keyed by the User ID title property.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// SyncLedgers upserts the ledger summary page for each of the given users.
// Users without a ledger are skipped with a warning. In dry-run mode changes
// are logged but not applied.
func SyncLedgers(ctx context.Context, repo pipeline.LedgerRepository, notionClient NotionService, notionDBID string, userIDs []string, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Int("users", len(userIDs)).
		Bool("dry_run", dryRun).
		Msg("Starting ledger sync to Notion")

	// One query up front: existing pages keyed by user ID.
	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("SyncLedgers: %w", err)
	}
	pageByUser := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		if userID := extractUserID(page); userID != "" {
			pageByUser[userID] = string(page.ID)
		}
	}

	var created, updated int
	for _, userID := range userIDs {
		l, err := repo.GetLedgerByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("SyncLedgers: loading ledger for %s: %w", userID, err)
		}
		if l == nil {
			log.Warn().Str("user_id", userID).Msg("User has no ledger, skipping")
			continue
		}

		pageID, exists := pageByUser[userID]

		if dryRun {
			if exists {
				log.Info().Str("user_id", userID).Str("page_id", pageID).Msg("[DRY RUN] Would update ledger page")
				updated++
			} else {
				log.Info().Str("user_id", userID).Msg("[DRY RUN] Would create ledger page")
				created++
			}
			continue
		}

		props := LedgerToNotionProperties(l)

		if exists {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Str("page_id", pageID).Msg("Failed to update ledger page")
				continue
			}
			log.Info().Str("user_id", userID).Str("page_id", pageID).Msg("Updated ledger page")
			updated++
		} else {
			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Failed to create ledger page")
				continue
			}
			log.Info().Str("user_id", userID).Str("page_id", string(page.ID)).Msg("Created ledger page")
			created++
		}
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("total", len(userIDs)).
		Msg("Ledger sync completed")

	return nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
