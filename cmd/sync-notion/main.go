package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/notionsync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (required)")
	users := flag.String("users", "", "Comma-separated user IDs to sync (required)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	if *users == "" {
		log.Fatal().Msg("Error: --users is required")
	}

	var userIDs []string
	for _, id := range strings.Split(*users, ",") {
		if id = strings.TrimSpace(id); id != "" {
			userIDs = append(userIDs, id)
		}
	}
	if len(userIDs) == 0 {
		log.Fatal().Msg("Error: --users contains no user IDs")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Strs("user_ids", userIDs).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	// Initialize BigQuery repository
	repo, err := infraBQ.NewBigQueryLedgerRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	// Sync ledgers
	if err := notionsync.SyncLedgers(ctx, repo, notionClient, *notionDBID, userIDs, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Println("Sync completed successfully.")
}
