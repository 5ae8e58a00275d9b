package gcsuploader

import (
	"context"

	"github.com/dvloznov/statement-ledger/internal/gcs"
)

// StorageService is re-exported from the shared package so existing callers
// can keep importing it from here.
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService that
// interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// UploadObject delegates to the package-level UploadObject function.
func (s *GCSStorageService) UploadObject(ctx context.Context, bucketName, objectName string, data []byte) error {
	return UploadObject(ctx, bucketName, objectName, data)
}

// FetchFromGCS delegates to the package-level FetchFromGCS function.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

// ExtractFilenameFromGCSURI delegates to the package-level function.
func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}

var _ gcs.StorageService = (*GCSStorageService)(nil)
