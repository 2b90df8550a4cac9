package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/tradeschema"
)

// ValidateS3Config performs basic sanity checks on the document store
// settings. An empty bucket disables S3 and always passes.
func ValidateS3Config(cfg tradeschema.StorageConfig) error {
	if cfg.Bucket == "" {
		return nil
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey == "" {
		return fmt.Errorf("storage.accessKeyId provided without storage.secretAccessKey")
	}
	if cfg.SecretAccessKey != "" && cfg.AccessKeyID == "" {
		return fmt.Errorf("storage.secretAccessKey provided without storage.accessKeyId")
	}
	if cfg.Region == "" && cfg.Endpoint == "" {
		return fmt.Errorf("storage: bucket requires a region or an endpoint")
	}
	return nil
}

// S3BucketAPI is the part of the S3 client the health check needs.
type S3BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3HealthCheck confirms the bucket exists and the configured credentials
// can reach it. An empty bucket means S3 is disabled and always passes.
func S3HealthCheck(ctx context.Context, client S3BucketAPI, bucket string, timeout time.Duration) error {
	if bucket == "" {
		return nil
	}
	if client == nil {
		return fmt.Errorf("s3 client not configured")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := client.HeadBucket(reqCtx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("s3 bucket %q check failed (%s): %w", bucket, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("s3 bucket %q check failed: %w", bucket, err)
}
