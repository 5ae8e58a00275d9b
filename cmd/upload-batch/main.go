package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	var (
		bucketName string
		objectName string
		filePath   string
	)

	flag.StringVar(&bucketName, "bucket", "", "GCS bucket name (required)")
	flag.StringVar(&objectName, "object", "", "GCS object name (optional; defaults to file name)")
	flag.StringVar(&filePath, "file", "", "Path to local batch JSON file (required)")
	flag.Parse()

	if bucketName == "" || filePath == "" {
		log.Fatal().Msg("Usage: upload-batch -bucket BUCKET_NAME -file /path/to/batch.json [-object OBJECT_NAME]")
	}

	if objectName == "" {
		objectName = filepath.Base(filePath)
	}

	// Validate the document before uploading so malformed batches never
	// reach the bucket.
	raw, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read batch file")
	}
	batch, err := pipeline.DecodeBatch(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch file is invalid")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("bucket", bucketName).
		Str("object", objectName).
		Str("user_id", batch.UserID).
		Int("transactions", len(batch.Transactions)).
		Msg("Uploading batch to GCS")

	if err := gcsuploader.UploadFile(ctx, bucketName, objectName, filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", filePath, bucketName, objectName)
}
