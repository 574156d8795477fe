package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"xperious/result-storage/internal/config"
)

// ErrObjectNotFound is returned by Bucket.Attrs and Bucket.Download when no
// object is stored under the key.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectAttrs is the metadata the store keeps for an object.
type ObjectAttrs struct {
	Key         string
	ContentType string
	Size        int64
	Updated     time.Time // last-modified, assigned by the store
}

// Bucket defines the object store operations the result storage needs.
type Bucket interface {
	// Name returns the bucket identifier, for use in log messages.
	Name() string

	// Upload writes data under key, replacing any existing object.
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// Attrs fetches object metadata without the payload.
	Attrs(ctx context.Context, key string) (*ObjectAttrs, error)

	// Download returns the full object payload.
	Download(ctx context.Context, key string) ([]byte, error)
}

// Opener connects to the store and resolves the configured bucket.
type Opener func(ctx context.Context) (Bucket, error)

// DefaultOpenTimeout bounds a single attempt to open the bucket.
const DefaultOpenTimeout = 30 * time.Second

// Handle is a lazily opened bucket shared by every request of the process.
// Only a successful open is kept; a failed one is retried on the next call.
type Handle struct {
	open    Opener
	timeout time.Duration

	// sem is held while the bucket is read or opened. Callers waiting on it
	// give up when their own context ends.
	sem    *semaphore.Weighted
	bucket Bucket
}

// HandleOption customizes a Handle.
type HandleOption func(*Handle)

// WithOpenTimeout replaces DefaultOpenTimeout.
func WithOpenTimeout(d time.Duration) HandleOption {
	return func(h *Handle) { h.timeout = d }
}

// NewHandle wraps open. Nothing is opened until Bucket is first called.
func NewHandle(open Opener, opts ...HandleOption) *Handle {
	h := &Handle{open: open, timeout: DefaultOpenTimeout, sem: semaphore.NewWeighted(1)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Bucket returns the shared bucket, opening it on first use.
//
// The open runs detached from ctx: the bucket outlives the request that
// happened to open it, so only the open timeout can cut it short.
func (h *Handle) Bucket(ctx context.Context) (Bucket, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.sem.Release(1)

	if h.bucket != nil {
		return h.bucket, nil
	}

	openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	b, err := h.open(openCtx)
	if err != nil {
		return nil, err
	}
	h.bucket = b
	return b, nil
}

// NewOpener returns the Opener for the backend selected in cfg.
func NewOpener(cfg *config.Config, logger zerolog.Logger) (Opener, error) {
	logger = logger.With().Str("component", "storage").Str("backend", cfg.ResultStorage.Backend).Logger()

	switch cfg.ResultStorage.Backend {
	case config.BackendGCS:
		return func(ctx context.Context) (Bucket, error) {
			return OpenGCS(ctx, cfg.ResultStorage, cfg.GCS, logger)
		}, nil
	case config.BackendS3:
		return func(ctx context.Context) (Bucket, error) {
			return OpenS3(ctx, cfg.ResultStorage, cfg.S3, logger)
		}, nil
	case config.BackendMemory:
		mem := NewMemory(cfg.ResultStorage.BucketID)
		return func(context.Context) (Bucket, error) {
			return mem, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.ResultStorage.Backend)
	}
}
