// Package resultstorage persists processed images in a cloud object store on
// behalf of the image server. Keys are derived from request paths by
// NormalizePath and objects may be treated as stale after a configured window.
package resultstorage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"xperious/result-storage/internal/host"
	"xperious/result-storage/internal/storage"
)

// Storage implements host.ResultStorage for one request context.
type Storage struct {
	hctx    *host.Context
	buckets *storage.Handle
	metrics host.Metrics
	now     func() time.Time
	logger  zerolog.Logger
}

var _ host.ResultStorage = (*Storage)(nil)

// Option customizes a Storage.
type Option func(*Storage)

// WithClock replaces time.Now for expiration checks and timings.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// New binds the shared bucket handle to a request context.
func New(hctx *host.Context, buckets *storage.Handle, opts ...Option) *Storage {
	s := &Storage{
		hctx:    hctx,
		buckets: buckets,
		metrics: hctx.Metrics,
		now:     time.Now,
		logger:  hctx.Logger.With().Str("component", "result_storage").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = host.NopMetrics{}
	}
	return s
}

// NewFactory returns a host.Factory sharing buckets across all requests.
func NewFactory(buckets *storage.Handle, opts ...Option) host.Factory {
	return func(hctx *host.Context) host.ResultStorage {
		return New(hctx, buckets, opts...)
	}
}

// Put uploads data under the normalized key of path.
func (s *Storage) Put(ctx context.Context, path string, data []byte) error {
	start := s.now()
	key := s.normalize(path)

	contentType := DefaultContentType
	if len(data) > 0 {
		if mime, err := detectContentType(data); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("couldn't determine mimetype")
		} else {
			contentType = mime
		}
	}

	bucket, err := s.buckets.Bucket(ctx)
	if err != nil {
		return err
	}
	if err := bucket.Upload(ctx, key, data, contentType); err != nil {
		return err
	}

	s.metrics.Timing(s.metricName("put", key), s.now().Sub(start))
	return nil
}

// Get returns the stored payload, or nil when nothing fresh is stored.
func (s *Storage) Get(ctx context.Context, path string) ([]byte, error) {
	s.logger.Debug().Str("path", path).Msg("get")
	start := s.now()
	key := s.normalize(path)

	bucket, err := s.buckets.Bucket(ctx)
	if err != nil {
		return nil, err
	}

	fresh, err := s.fresh(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	var data []byte
	if fresh {
		data, err = bucket.Download(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Deleted between the metadata lookup and the download.
			data, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
	} else {
		s.logger.Debug().Str("key", key).Msg("object not found or expired")
	}

	s.metrics.Timing(s.metricName("fetch", key), s.now().Sub(start))
	return data, nil
}

// Exists reports whether a fresh object is stored for path.
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	key := s.normalize(path)

	bucket, err := s.buckets.Bucket(ctx)
	if err != nil {
		return false, err
	}
	return s.fresh(ctx, bucket, key)
}

// Remove is not supported by this backend.
func (s *Storage) Remove(ctx context.Context, path string) error {
	return fmt.Errorf("result storage remove %q: %w", path, errors.ErrUnsupported)
}

// Signing and detector side-data are not persisted.

func (s *Storage) PutCrypto(ctx context.Context, path string) error { return nil }

func (s *Storage) GetCrypto(ctx context.Context, path string) ([]byte, error) { return nil, nil }

func (s *Storage) PutDetectorData(ctx context.Context, path string, data []byte) error { return nil }

func (s *Storage) GetDetectorData(ctx context.Context, path string) ([]byte, error) { return nil, nil }

// fresh is true when key exists and has not expired.
func (s *Storage) fresh(ctx context.Context, bucket storage.Bucket, key string) (bool, error) {
	attrs, err := bucket.Attrs(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !Expired(attrs.Updated, s.now(), s.expirationSeconds()), nil
}

func (s *Storage) normalize(path string) string {
	key := NormalizePath(path)
	s.logger.Debug().Str("path", path).Str("key", key).Msg("normalized")
	return key
}

func (s *Storage) expirationSeconds() int {
	if s.hctx.Config == nil {
		return 0
	}
	return s.hctx.Config.ResultStorage.ExpirationSeconds
}

func (s *Storage) metricName(op, key string) string {
	prefix := "gcs"
	if s.hctx.Config != nil && s.hctx.Config.ResultStorage.MetricPrefix != "" {
		prefix = s.hctx.Config.ResultStorage.MetricPrefix
	}
	return prefix + "." + op + "." + key
}
