package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"xperious/result-storage/internal/config"
)

// s3API is the subset of the S3 client the bucket uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Bucket implements Bucket on an S3-compatible backend.
type s3Bucket struct {
	client     s3API
	bucketName string
	logger     zerolog.Logger
}

// OpenS3 creates the S3 client and checks that the bucket is reachable.
func OpenS3(ctx context.Context, rs config.ResultStorageConfig, cfg config.S3Config, logger zerolog.Logger) (Bucket, error) {
	opts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.Region),
	}
	// Static keys when configured, otherwise the default credential chain.
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS SDK config")
		return nil, err
	}

	client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		// Custom endpoint for S3-compatible services (MinIO, GCS interoperability, ...)
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(rs.BucketID)}); err != nil {
		logger.Error().Err(err).Str("bucket", rs.BucketID).Msg("bucket lookup failed")
		return nil, err
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", rs.BucketID).Msg("S3 bucket opened")

	return newS3Bucket(client, rs.BucketID, logger), nil
}

func newS3Bucket(client s3API, bucketName string, logger zerolog.Logger) *s3Bucket {
	return &s3Bucket{client: client, bucketName: bucketName, logger: logger}
}

func (s *s3Bucket) Name() string { return s.bucketName }

// Upload stores data with the given content type.
func (s *s3Bucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

// Attrs maps HeadObject onto ObjectAttrs.
func (s *s3Bucket) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	attrs := &ObjectAttrs{
		Key:         key,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}
	if out.LastModified != nil {
		attrs.Updated = out.LastModified.UTC()
	}
	return attrs, nil
}

func (s *s3Bucket) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// HeadObject reports a missing key as NotFound, GetObject as NoSuchKey.
func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
