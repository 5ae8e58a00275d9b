package gcs

import (
	"context"
)

// StorageService abstracts the object store holding parsed statement batch
// documents. The interface lives in its own package so the pipeline and the
// uploader implementation can share it without a dependency cycle.
type StorageService interface {
	// UploadObject writes raw bytes to bucket/object.
	UploadObject(ctx context.Context, bucketName, objectName string, data []byte) error

	// FetchFromGCS downloads the object bytes for a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// ExtractFilenameFromGCSURI returns the final path element of a gs:// URI.
	ExtractFilenameFromGCSURI(uri string) string
}
