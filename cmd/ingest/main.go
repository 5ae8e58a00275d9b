package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	gcsURI := flag.String("gcs-uri", "", "GCS URI of the parsed batch JSON (e.g. gs://bucket/batches/batch.json)")
	flag.Parse()

	if *gcsURI == "" {
		log.Fatal().Msg("Error: --gcs-uri is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("gcs_uri", *gcsURI).Msg("Starting consolidation")

	state, err := pipeline.ConsolidateBatchFromGCS(ctx, *gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Consolidation failed")
	}

	fmt.Printf("Consolidated batch %s for user %s: %d added, %d duplicates (revision %d)\n",
		state.Batch.ID, state.Batch.UserID, state.Result.Added, state.Result.Duplicates, state.Ledger.Revision)
}
