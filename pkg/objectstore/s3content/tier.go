// Package s3content implements an optional content-blob storage tier:
// File objects live in S3-compatible storage instead of
// a metadata backend's local disk, while Commit/DirTree/DirMeta objects,
// refs, and detached metadata stay with whichever ObjectStore backend is
// doing the composing. This file holds client construction, bucket-access
// verification, and not-found error classification (isNotFoundError),
// trimmed to the read/write/exists surface this tier needs
// (no multipart upload or incremental writer: ostree content objects are
// read whole from the remote and written whole here).
package s3content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/ostreesync/pkg/objectname"
)

// Config configures the S3 client and target bucket/prefix.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// NewClient builds an S3 client from static credentials (region + static
// credentials provider, optional custom endpoint and path-style for
// S3-compatible services like MinIO).
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// Tier is the content-blob store. Objects are keyed by digest alone — the
// type is always ObjectTypeFile, since that is the only kind of object a
// composing Store ever routes here.
type Tier struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewTier verifies bucket access: it refuses to start against a bucket it cannot
// reach) and returns a ready Tier.
func NewTier(ctx context.Context, client *s3.Client, bucket, keyPrefix string) (*Tier, error) {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("access bucket %q: %w", bucket, err)
	}
	return &Tier{client: client, bucket: bucket, keyPrefix: keyPrefix}, nil
}

func (t *Tier) objectKey(digest objectname.Digest) string {
	return t.keyPrefix + string(digest)
}

// HasContent reports whether digest's bytes are already stored.
func (t *Tier) HasContent(ctx context.Context, digest objectname.Digest) (bool, error) {
	_, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(digest)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFoundError(err) {
		return false, nil
	}
	return false, err
}

// WriteContent uploads data under digest's key. Content objects are
// written whole (ostree's archive-z2 loose objects are individually
// small enough that multipart upload, useful for arbitrary file sizes,
// is not needed here).
func (t *Tier) WriteContent(ctx context.Context, digest objectname.Digest, data []byte) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(digest)),
		Body:   bytes.NewReader(data),
	})
	return err
}

// ReadContent downloads digest's bytes, for tooling (e.g. a future fsck
// or checkout command) that needs to read content back; the pull
// engine's ObjectStore interface itself never reads content, only writes
// it, so this method exists outside that interface.
func (t *Tier) ReadContent(ctx context.Context, digest objectname.Digest) ([]byte, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(digest)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("content %s: %w", digest, errContentNotFound)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

var errContentNotFound = errors.New("content not found")

// isNotFoundError classifies typed NoSuchKey/NotFound errors, or the
// equivalent AWS API error code, as a missing object rather than a
// transport failure.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" {
			return true
		}
	}
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
