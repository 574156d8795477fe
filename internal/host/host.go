// Package host defines the contract between the image server and its result
// storage plugins: the per-request context handed to a plugin and the
// operations a plugin must provide.
package host

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"xperious/result-storage/internal/config"
)

// Metrics is the timing sink exposed to plugins.
type Metrics interface {
	Timing(name string, d time.Duration)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) Timing(string, time.Duration) {}

// Request carries the parts of the incoming request a plugin may look at.
type Request struct {
	ID          string
	Path        string
	AcceptsWebP bool
}

// Context is built by the host for every request.
type Context struct {
	Config  *config.Config
	Metrics Metrics
	Logger  zerolog.Logger
	Request Request
}

// IsAutoWebP reports whether the response format may be negotiated to WebP.
func (c *Context) IsAutoWebP() bool {
	return c.Config != nil && c.Config.ResultStorage.AutoWebP && c.Request.AcceptsWebP
}

// ResultStorage is the plugin contract for persisting processed images.
//
// Get, GetCrypto and GetDetectorData return a nil slice and a nil error when
// there is nothing stored. Remove may fail with errors.ErrUnsupported.
type ResultStorage interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error

	PutCrypto(ctx context.Context, path string) error
	GetCrypto(ctx context.Context, path string) ([]byte, error)
	PutDetectorData(ctx context.Context, path string, data []byte) error
	GetDetectorData(ctx context.Context, path string) ([]byte, error)
}

// Factory creates a plugin instance bound to one request context.
type Factory func(hctx *Context) ResultStorage
