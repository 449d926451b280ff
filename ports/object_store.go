package ports

import (
	"context"
	"io"
	"time"
)

// ObjectStore opens binary objects by logical path. Implementations return
// errors.NotFound for a missing object and errors.Unavailable for anything
// else. The caller must Close the reader, including after a partial read.
type ObjectStore interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ImageCache is a path-keyed byte cache with fixed time-to-live eviction
type ImageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
}
