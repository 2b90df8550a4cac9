package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/tradeschema"
)

const defaultMaxDocumentSize = 4 * 1024 * 1024

type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3UploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ObjectDocumentStore reads and writes JSON documents addressed by URI.
// Plain paths and file:// URIs go to the local filesystem; s3://bucket/key
// URIs go to S3 when a client is configured.
type ObjectDocumentStore struct {
	client   s3GetObjectAPI
	uploader s3UploadAPI
	breaker  *CircuitBreaker
	maxSize  int64
}

var _ tradeschema.DocumentStore = (*ObjectDocumentStore)(nil)

// DocumentStoreOption configures an ObjectDocumentStore.
type DocumentStoreOption func(*ObjectDocumentStore)

// WithS3 enables s3:// URIs.
func WithS3(client s3GetObjectAPI, uploader s3UploadAPI) DocumentStoreOption {
	return func(s *ObjectDocumentStore) {
		s.client = client
		s.uploader = uploader
	}
}

// WithCircuitBreaker stops S3 calls for a while after repeated failures.
func WithCircuitBreaker(cb *CircuitBreaker) DocumentStoreOption {
	return func(s *ObjectDocumentStore) {
		s.breaker = cb
	}
}

// WithMaxDocumentSize caps how many bytes Fetch reads.
func WithMaxDocumentSize(n int64) DocumentStoreOption {
	return func(s *ObjectDocumentStore) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// NewObjectDocumentStore creates a store. Without WithS3 only local
// documents are reachable.
func NewObjectDocumentStore(opts ...DocumentStoreOption) *ObjectDocumentStore {
	s := &ObjectDocumentStore{maxSize: defaultMaxDocumentSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocumentLocation is a parsed document URI.
type DocumentLocation struct {
	Scheme string // "file" or "s3"
	Bucket string
	Key    string // object key, or filesystem path for "file"
}

// ParseDocumentURI splits uri into a DocumentLocation.
func ParseDocumentURI(uri string) (DocumentLocation, error) {
	if uri == "" {
		return DocumentLocation{}, unsupportedURI(uri, "empty uri")
	}
	if !strings.Contains(uri, "://") {
		return DocumentLocation{Scheme: "file", Key: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return DocumentLocation{}, unsupportedURI(uri, err.Error())
	}
	switch u.Scheme {
	case "file":
		path := u.Path
		if u.Host != "" {
			path = filepath.Join(u.Host, u.Path)
		}
		if path == "" {
			return DocumentLocation{}, unsupportedURI(uri, "missing path")
		}
		return DocumentLocation{Scheme: "file", Key: path}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return DocumentLocation{}, unsupportedURI(uri, "s3 uri must be s3://bucket/key")
		}
		return DocumentLocation{Scheme: "s3", Bucket: u.Host, Key: key}, nil
	default:
		return DocumentLocation{}, unsupportedURI(uri, fmt.Sprintf("scheme %q is not supported", u.Scheme))
	}
}

func unsupportedURI(uri, reason string) error {
	return tradeschema.NewTradeError(tradeschema.ErrorTypeValidation, tradeschema.ErrCodeUnsupportedURI, reason).
		WithDetail("uri", uri)
}

// Fetch returns the document stored at uri.
func (s *ObjectDocumentStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseDocumentURI(uri)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	switch loc.Scheme {
	case "file":
		f, err := os.Open(loc.Key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, tradeschema.NewDocumentNotFoundError(uri, err)
			}
			return nil, tradeschema.NewStorageError("failed to open document", err).WithDetail("uri", uri)
		}
		body = f
	case "s3":
		if s.client == nil {
			return nil, unsupportedURI(uri, "s3 document store is not configured")
		}
		if err := s.breaker.Allow(); err != nil {
			return nil, tradeschema.NewStorageError("s3 get object skipped", err).WithDetail("uri", uri)
		}
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
		})
		if err != nil {
			if isMissingObject(err) {
				s.breaker.RecordSuccess()
				return nil, tradeschema.NewDocumentNotFoundError(uri, err)
			}
			s.breaker.RecordFailure()
			return nil, tradeschema.NewStorageError("s3 get object failed", err).WithDetail("uri", uri)
		}
		s.breaker.RecordSuccess()
		body = out.Body
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, s.maxSize+1))
	if err != nil {
		return nil, tradeschema.NewStorageError("failed to read document", err).WithDetail("uri", uri)
	}
	if int64(len(data)) > s.maxSize {
		return nil, tradeschema.NewTradeError(tradeschema.ErrorTypeValidation, tradeschema.ErrCodeValidationFailed,
			fmt.Sprintf("document exceeds %d bytes", s.maxSize)).WithDetail("uri", uri)
	}
	return data, nil
}

// Publish writes body to uri, replacing any existing document.
func (s *ObjectDocumentStore) Publish(ctx context.Context, uri string, body io.Reader) error {
	loc, err := ParseDocumentURI(uri)
	if err != nil {
		return err
	}

	switch loc.Scheme {
	case "file":
		data, err := io.ReadAll(body)
		if err != nil {
			return tradeschema.NewStorageError("failed to read document body", err)
		}
		if dir := filepath.Dir(loc.Key); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return tradeschema.NewStorageError("failed to create document directory", err).WithDetail("uri", uri)
			}
		}
		if err := os.WriteFile(loc.Key, data, 0o644); err != nil {
			return tradeschema.NewStorageError("failed to write document", err).WithDetail("uri", uri)
		}
		return nil
	default:
		if s.uploader == nil {
			return unsupportedURI(uri, "s3 document store is not configured")
		}
		if err := s.breaker.Allow(); err != nil {
			return tradeschema.NewStorageError("s3 upload skipped", err).WithDetail("uri", uri)
		}
		if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(loc.Bucket),
			Key:         aws.String(loc.Key),
			Body:        body,
			ContentType: aws.String("application/json"),
		}); err != nil {
			s.breaker.RecordFailure()
			return tradeschema.NewStorageError("s3 upload failed", err).WithDetail("uri", uri)
		}
		s.breaker.RecordSuccess()
		return nil
	}
}

// PublishBytes is Publish for an in-memory document.
func (s *ObjectDocumentStore) PublishBytes(ctx context.Context, uri string, data []byte) error {
	return s.Publish(ctx, uri, bytes.NewReader(data))
}

func isMissingObject(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
