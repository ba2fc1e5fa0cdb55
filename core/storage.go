package core

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// FileStorage is any service that can durably store file objects and issue
// time-limited read URLs for them. Put must be safe to retry (at-least-once).
type FileStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// UpstreamStorageError indicates that the file store failed or is unreachable.
// It is propagated as-is; the caller decides whether to retry.
type UpstreamStorageError struct {
	Err error
}

func NewUpstreamStorageError(err error) error {
	return &UpstreamStorageError{Err: err}
}

func (e UpstreamStorageError) Error() string {
	if e.Err == nil {
		return "file storage unavailable"
	}
	return "file storage: " + e.Err.Error()
}

func IsUpstreamStorage(err error) bool {
	_, ok := errors.Cause(err).(*UpstreamStorageError)
	return ok
}
