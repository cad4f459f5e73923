// Package archive keeps a copy of every accepted vendor CSV upload.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/spec-kit/vendor-desk/internal/config"
)

// Archiver stores raw sync uploads.
type Archiver interface {
	Store(ctx context.Context, key string, body []byte) error
}

// SyncKey names the object for an upload received at t.
func SyncKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("syncs/%04d/%02d/%02d/%s-%s.csv",
		t.Year(), int(t.Month()), t.Day(), t.Format("20060102T150405Z"), uuid.NewString())
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes uploads to an S3-compatible bucket.
type S3Archiver struct {
	client putObjectAPI
	bucket string
}

// NewS3Archiver builds an archiver for cfg.Bucket. Endpoint may point at any
// S3-compatible store (MinIO, Ceph RGW).
func NewS3Archiver(cfg config.ArchiveConfig) *S3Archiver {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	return &S3Archiver{client: s3.New(opts), bucket: cfg.Bucket}
}

// Store implements Archiver.
func (a *S3Archiver) Store(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", a.bucket, key, err)
	}
	return nil
}

// NopArchiver discards uploads. Used when no bucket is configured.
type NopArchiver struct{}

// Store implements Archiver.
func (NopArchiver) Store(context.Context, string, []byte) error { return nil }

// New picks the archiver for cfg.
func New(cfg config.ArchiveConfig) Archiver {
	if cfg.Bucket == "" {
		return NopArchiver{}
	}
	return NewS3Archiver(cfg)
}
