package e2e_harness

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lib/pq"
	"github.com/lychee-technology/tradeschema"
)

// SeedPricelist writes entries straight into table, bypassing the repository.
// The table must already exist.
func SeedPricelist(ctx context.Context, db *sql.DB, table string, entries ...*tradeschema.PriceEntry) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (sku, enabled, intent, entry, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		pq.QuoteIdentifier(table))

	now := time.Now().Unix()
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", entry.SKU, err)
		}
		if _, err := db.ExecContext(ctx, stmt, entry.SKU, entry.Enabled, int(entry.Intent), payload, now); err != nil {
			return fmt.Errorf("insert %s: %w", entry.SKU, err)
		}
	}
	return nil
}

// CountRows returns the number of rows in table.
func CountRows(ctx context.Context, db *sql.DB, table string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", pq.QuoteIdentifier(table))).Scan(&n)
	return n, err
}

// UploadDocumentToS3 stores data at bucket/objectName, creating the bucket
// when it does not exist yet.
func UploadDocumentToS3(ctx context.Context, endpoint, accessKey, secretKey, bucket, objectName string, data []byte) error {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion("us-east-1"), // region required by SDK; endpoint will be used for custom endpoints
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	}
	if endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if _, cerr := s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); cerr != nil {
			var apiErr smithy.APIError
			if !errors.As(cerr, &apiErr) {
				return fmt.Errorf("create bucket: %w", cerr)
			}
			if code := apiErr.ErrorCode(); code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket: %w", cerr)
			}
		}
	}

	uploader := manager.NewUploader(s3Client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectName),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}
