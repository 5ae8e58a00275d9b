package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/bigquery"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store/inmemory"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "merge":
		runMerge(log)
	case "inspect":
		runInspect(log)
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  merge     Merge a local batch JSON file into the user's ledger")
	fmt.Println("  inspect   Inspect a user's ledger and its transactions")
	fmt.Println("  upload    Upload a batch JSON file to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runMerge(log zerolog.Logger) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local batch JSON file")
	dryRun := fs.Bool("dry-run", false, "Merge and report, but do not persist")
	local := fs.Bool("local", false, "Merge into a fresh in-memory store instead of BigQuery")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read batch file")
	}
	batch, err := pipeline.DecodeBatch(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch file is invalid")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var repo bigquery.LedgerRepository
	if *local {
		repo = inmemory.NewStore()
	} else {
		bqRepo, err := infraBQ.NewBigQueryLedgerRepository(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create ledger repository")
		}
		repo = bqRepo
	}
	defer repo.Close()

	existing, err := repo.GetLedgerByUser(ctx, batch.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}

	result, err := ledger.NewService(log).Merge(existing, batch)
	if err != nil {
		log.Fatal().Err(err).Msg("Merge failed")
	}

	if !*dryRun && !result.Unchanged {
		persisted, err := repo.UpsertLedger(ctx, result.Ledger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to persist ledger")
		}
		result.Ledger = persisted
	}

	mode := "merged"
	if *dryRun {
		mode = "dry run"
	}
	fmt.Printf("\n=== Merge Result (%s) ===\n", mode)
	fmt.Printf("User:       %s\n", batch.UserID)
	fmt.Printf("Statement:  %s\n", batch.ID)
	fmt.Printf("Added:      %d\n", result.Added)
	fmt.Printf("Duplicates: %d\n", result.Duplicates)
	fmt.Printf("Total:      %d\n", result.Ledger.Summary.TransactionCount)
	if len(result.OverlapStatements) > 0 {
		fmt.Printf("Overlaps:   %v\n", result.OverlapStatements)
	}
	for _, w := range result.Warnings {
		fmt.Printf("Repaired balance at index %d: %.2f -> %.2f\n", w.Index, w.Stated, w.Expected)
	}
	fmt.Println()
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	userID := fs.String("user", "", "User ID whose ledger to inspect")
	showTxs := fs.Bool("transactions", false, "Also print every transaction")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryLedgerRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	l, err := repo.GetLedgerByUser(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}
	if l == nil {
		log.Fatal().Str("user_id", *userID).Msg("User has no ledger")
	}

	fmt.Println("\n=== Ledger Details ===")
	fmt.Printf("ID:           %s\n", l.ID)
	fmt.Printf("User:         %s\n", l.UserID)
	fmt.Printf("Revision:     %d\n", l.Revision)
	fmt.Printf("Period:       %s - %s\n", l.FirstDate.Format("2006-01-02"), l.LastDate.Format("2006-01-02"))
	fmt.Printf("Transactions: %d (%d credits, %d debits)\n",
		l.Summary.TransactionCount, l.Summary.CreditCount, l.Summary.DebitCount)
	fmt.Printf("Total Credit: %.2f\n", l.Summary.TotalCredit)
	fmt.Printf("Total Debit:  %.2f\n", l.Summary.TotalDebit)
	fmt.Printf("Net Cashflow: %.2f\n", l.Summary.NetCashflow)
	fmt.Printf("Balance:      %.2f -> %.2f\n", l.Summary.StartingBalance, l.Summary.EndingBalance)

	if *showTxs {
		fmt.Printf("\n=== Transactions (%d) ===\n", len(l.Transactions))
		for i, tx := range l.Transactions {
			fmt.Printf("\n%d. %s\n", i+1, tx.Narration)
			fmt.Printf("   Date:      %s\n", tx.Date.Format("2006-01-02"))
			fmt.Printf("   Amount:    %.2f (%s)\n", tx.Amount, tx.Type)
			fmt.Printf("   Balance:   %.2f\n", tx.ClosingBalance)
			fmt.Printf("   Statement: %s\n", tx.StatementID)
		}
	}
	fmt.Println()
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local batch JSON file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading batch to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}
