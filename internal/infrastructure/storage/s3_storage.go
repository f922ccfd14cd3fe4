// Package storage archives invoice snapshots in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/invoicing"
	infraconfig "github.com/tilver/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ appinvoicing.InvoiceArchiver = (*S3InvoiceArchive)(nil)

// bucketAPI is the subset of the S3 client used by the archive
type bucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3InvoiceArchive writes a JSON snapshot of every sent invoice to a bucket.
// Works against AWS S3 as well as MinIO or other S3-compatible stores.
type S3InvoiceArchive struct {
	client bucketAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// ArchiveOption configures an S3InvoiceArchive
type ArchiveOption func(*S3InvoiceArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) ArchiveOption {
	return func(a *S3InvoiceArchive) {
		a.logger = logger
	}
}

// NewS3Client builds an S3 client from configuration. Static credentials are
// used when an access key is configured, the default AWS chain otherwise.
func NewS3Client(ctx context.Context, cfg *infraconfig.StorageConfig) (*s3.Client, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("storage access key and secret key must be set together")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewS3InvoiceArchive creates the archive on top of an S3 client
func NewS3InvoiceArchive(client bucketAPI, bucket, prefix string, opts ...ArchiveOption) *S3InvoiceArchive {
	a := &S3InvoiceArchive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *S3InvoiceArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Key returns the object key of an invoice snapshot:
// <prefix>/<tenant>/<year>/<invoice number>.json
func (a *S3InvoiceArchive) Key(inv *invoicing.Invoice) string {
	return path.Join(
		a.prefix,
		inv.TenantID.String(),
		fmt.Sprintf("%04d", inv.IssueDate.Year()),
		sanitizeKeyPart(inv.InvoiceNumber)+".json",
	)
}

// Archive uploads the invoice snapshot and returns its key
func (a *S3InvoiceArchive) Archive(ctx context.Context, inv *invoicing.Invoice) (string, error) {
	if inv == nil {
		return "", errors.New("invoice is required")
	}
	body, err := json.Marshal(appinvoicing.ToInvoiceResponse(inv))
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice: %w", err)
	}

	key := a.Key(inv)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"invoice-id": inv.ID.String(),
			"status":     string(inv.Status),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload invoice %s: %w", inv.InvoiceNumber, err)
	}
	return key, nil
}

// Bucket returns the bucket name
func (a *S3InvoiceArchive) Bucket() string {
	return a.bucket
}

func sanitizeKeyPart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnumbered"
	}
	return strings.NewReplacer("/", "-", "\\", "-", " ", "_").Replace(s)
}
