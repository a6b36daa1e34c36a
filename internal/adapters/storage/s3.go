package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"reconned/internal/domain"
)

// DeleteObjects accepts at most this many keys per call.
const maxDeleteBatch = 1000

// S3Config holds configuration for the S3 (or S3-compatible) bucket.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint overrides the AWS endpoint for S3-compatible stores (e.g. R2, MinIO).
	Endpoint string
}

// Config holds configuration for creating a file storage.
type Config struct {
	Provider string
	S3       S3Config
}

type s3API interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// NewFileStorage creates the storage collaborator. Provider "s3" uses S3; "noop" or unknown uses a no-op storage.
func NewFileStorage(config Config, logger *slog.Logger) (domain.FileStorage, error) {
	switch config.Provider {
	case "s3":
		c := config.S3
		if c.Bucket == "" {
			return nil, fmt.Errorf("s3 storage: bucket is required")
		}
		awsCfg := aws.Config{
			Region: c.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
			),
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if c.Endpoint != "" {
				o.BaseEndpoint = aws.String(c.Endpoint)
				o.UsePathStyle = true
			}
		})
		return &s3Storage{client: client, bucket: c.Bucket, logger: logger}, nil
	case "noop":
		return &noopStorage{logger: logger}, nil
	default:
		logger.Warn("unknown storage provider, using noop", "provider", config.Provider)
		return &noopStorage{logger: logger}, nil
	}
}

type s3Storage struct {
	client s3API
	bucket string
	logger *slog.Logger
}

func (s *s3Storage) DeleteFile(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// DeleteFiles removes keys in batches. Per-object failures reported by S3 are
// logged and the first one is returned after every batch was attempted.
func (s *s3Storage) DeleteFiles(ctx context.Context, keys []string) error {
	var firstErr error
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("delete objects: %w", err)
			}
			continue
		}
		for _, e := range out.Errors {
			s.logger.WarnContext(ctx, "delete object failed", "key", aws.ToString(e.Key), "code", aws.ToString(e.Code), "message", aws.ToString(e.Message))
			if firstErr == nil {
				firstErr = fmt.Errorf("delete object %s: %s", aws.ToString(e.Key), aws.ToString(e.Code))
			}
		}
	}
	return firstErr
}

type noopStorage struct {
	logger *slog.Logger
}

func (n *noopStorage) DeleteFile(ctx context.Context, key string) error {
	return n.DeleteFiles(ctx, []string{key})
}

func (n *noopStorage) DeleteFiles(ctx context.Context, keys []string) error {
	n.logger.InfoContext(ctx, "files would be deleted (noop)", "count", len(keys))
	return nil
}
