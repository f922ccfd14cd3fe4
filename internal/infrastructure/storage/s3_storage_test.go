package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/config"
)

type fakeBucket struct {
	headErr   error
	createErr error
	putErr    error
	created   int
	puts      map[string][]byte
	metadata  map[string]map[string]string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{puts: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (f *fakeBucket) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeBucket) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created++
	return &s3.CreateBucketOutput{}, f.createErr
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.puts[key] = body
	f.metadata[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func sentInvoice(t *testing.T) *invoicing.Invoice {
	t.Helper()
	item, err := invoicing.NewLineItem("Hosting", decimal.NewFromInt(1), decimal.NewFromInt(100), decimal.NewFromInt(19))
	require.NoError(t, err)
	actor := shared.NewUserActor(uuid.New())
	inv, err := invoicing.NewInvoice(uuid.New(), "INV-202403-00012", "ACME GmbH",
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), []invoicing.LineItem{item},
		invoicing.PaymentTerms{DueDays: 14}, actor)
	require.NoError(t, err)
	require.NoError(t, inv.TransitionTo(invoicing.InvoiceStatusPending, actor))
	require.NoError(t, inv.TransitionTo(invoicing.InvoiceStatusSent, actor))
	return inv
}

func TestNewS3Client_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "configuration is required"},
		{name: "missing bucket", cfg: &config.StorageConfig{}, wantErr: "bucket is required"},
		{
			name:    "access key without secret",
			cfg:     &config.StorageConfig{Bucket: "ledger", AccessKey: "key"},
			wantErr: "must be set together",
		},
		{
			name: "custom endpoint",
			cfg: &config.StorageConfig{
				Bucket: "ledger", AccessKey: "key", SecretKey: "secret",
				Endpoint: "localhost:9000", UsePathStyle: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewS3Client(ctx, tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestS3InvoiceArchive_Archive(t *testing.T) {
	bucket := newFakeBucket()
	archive := NewS3InvoiceArchive(bucket, "ledger", "/invoices/")
	inv := sentInvoice(t)

	key, err := archive.Archive(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "invoices/"+inv.TenantID.String()+"/2024/INV-202403-00012.json", key)

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(bucket.puts[key], &snapshot))
	assert.Equal(t, "INV-202403-00012", snapshot["invoice_number"])
	assert.Equal(t, "SENT", snapshot["status"])
	assert.Equal(t, "SENT", bucket.metadata[key]["status"])
	assert.Equal(t, "ledger", archive.Bucket())
}

func TestS3InvoiceArchive_ArchiveError(t *testing.T) {
	bucket := newFakeBucket()
	bucket.putErr = errors.New("connection refused")
	archive := NewS3InvoiceArchive(bucket, "ledger", "invoices")

	_, err := archive.Archive(context.Background(), sentInvoice(t))
	assert.ErrorContains(t, err, "INV-202403-00012")

	_, err = archive.Archive(context.Background(), nil)
	assert.Error(t, err)
}

func TestS3InvoiceArchive_Key(t *testing.T) {
	archive := NewS3InvoiceArchive(newFakeBucket(), "ledger", "")
	inv := sentInvoice(t)
	inv.InvoiceNumber = "2024/ 7"
	assert.Equal(t, inv.TenantID.String()+"/2024/2024-_7.json", archive.Key(inv))

	inv.InvoiceNumber = ""
	assert.Contains(t, archive.Key(inv), "unnumbered.json")
}

func TestS3InvoiceArchive_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		bucket := newFakeBucket()
		require.NoError(t, NewS3InvoiceArchive(bucket, "ledger", "").EnsureBucket(ctx))
		assert.Zero(t, bucket.created)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		bucket := newFakeBucket()
		bucket.headErr = &types.NotFound{}
		require.NoError(t, NewS3InvoiceArchive(bucket, "ledger", "").EnsureBucket(ctx))
		assert.Equal(t, 1, bucket.created)
	})

	t.Run("race with another creator", func(t *testing.T) {
		bucket := newFakeBucket()
		bucket.headErr = &types.NoSuchBucket{}
		bucket.createErr = &types.BucketAlreadyOwnedByYou{}
		assert.NoError(t, NewS3InvoiceArchive(bucket, "ledger", "").EnsureBucket(ctx))
	})

	t.Run("other head errors propagate", func(t *testing.T) {
		bucket := newFakeBucket()
		bucket.headErr = errors.New("access denied")
		assert.ErrorContains(t, NewS3InvoiceArchive(bucket, "ledger", "").EnsureBucket(ctx), "access denied")
	})
}
