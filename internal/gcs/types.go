package gcs

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadFile uploads a local file to a storage bucket under the given object name
	// and returns its gs:// URI.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) (string, error)

	// UploadBytes stores data under the given object name and returns its gs:// URI.
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)

	// FetchFromGCS downloads file bytes and the stored content type from the given URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, string, error)
}
