package storage

import "context"

// MediaStore is the slice of S3Store the engines depend on.
// Keeping it narrow makes the cleanup and marketplace code mockable.
type MediaStore interface {
	DeleteFile(ctx context.Context, key string) error
	DeleteFileByURL(ctx context.Context, fileURL string) error
}

// Ensure S3Store implements MediaStore
var _ MediaStore = (*S3Store)(nil)
