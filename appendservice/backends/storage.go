package backends

import (
	"context"
	"io"
)

// Storage is an interface for storing objects
type Storage interface {
	Exists(ctx context.Context, key string) bool
	Put(ctx context.Context, key string, contentType string, body io.ReadSeeker) error
}
