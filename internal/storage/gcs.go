package storage

import (
	"context"
	"errors"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"xperious/result-storage/internal/config"
)

// gcsBucket implements Bucket on Google Cloud Storage.
type gcsBucket struct {
	bucket *gcs.BucketHandle
	name   string
	logger zerolog.Logger
}

// OpenGCS creates a storage client for the configured project and fetches the
// bucket, failing if it does not exist.
func OpenGCS(ctx context.Context, rs config.ResultStorageConfig, cfg config.GCSConfig, logger zerolog.Logger) (Bucket, error) {
	var opts []option.ClientOption
	if rs.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(rs.ProjectID))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		// Emulators such as fake-gcs-server take no credentials.
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	logger.Debug().Str("bucket", rs.BucketID).Str("project", rs.ProjectID).Msg("getting bucket")

	// The client keeps this context for token refreshes for as long as it lives.
	client, err := gcs.NewClient(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, err
	}

	bucket := client.Bucket(rs.BucketID)
	if _, err := bucket.Attrs(ctx); err != nil {
		client.Close()
		logger.Error().Err(err).Str("bucket", rs.BucketID).Msg("bucket lookup failed")
		return nil, err
	}

	logger.Info().Str("bucket", rs.BucketID).Msg("GCS bucket opened")

	return &gcsBucket{bucket: bucket, name: rs.BucketID, logger: logger}, nil
}

func (g *gcsBucket) Name() string { return g.name }

func (g *gcsBucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (g *gcsBucket) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	attrs, err := g.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	return &ObjectAttrs{
		Key:         key,
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		Updated:     attrs.Updated.UTC(),
	}, nil
}

func (g *gcsBucket) Download(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
