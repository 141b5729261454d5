package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"imagevault/internal/config"
)

// DefaultSignTTL is how long a presigned link stays valid when the
// caller does not ask for a specific duration.
const DefaultSignTTL = time.Hour

// ObjectStore stores opaque image payloads keyed by image id.
type ObjectStore interface {
	// Put writes data under id, overwriting any existing payload.
	Put(ctx context.Context, id string, data []byte, contentType string) error

	// Get returns the payload stored under id. A missing key yields an
	// error classified as KindNotFound.
	Get(ctx context.Context, id string) ([]byte, error)

	// Delete removes the payload under id. Deleting a missing key is not
	// an error; that matches the backing store's semantics.
	Delete(ctx context.Context, id string) error

	// SignURL issues a time-limited retrieval link for id. It signs
	// locally and does not verify the payload exists.
	SignURL(ctx context.Context, id string, ttl time.Duration) (string, error)
}

// MinioStore is an ObjectStore backed by an S3-compatible endpoint via
// the MinIO client.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore builds the client from cfg. With cfg.UseLocal it talks
// plain HTTP to cfg.Endpoint; otherwise it targets the production S3
// endpoint for cfg.Region over TLS.
func NewMinioStore(cfg config.Config) (*MinioStore, error) {
	endpoint := cfg.Endpoint
	secure := false
	if !cfg.UseLocal {
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		secure = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the configured bucket if it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &Error{Op: "object.EnsureBucket", Kind: classifyMinio(err), Err: err}
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return &Error{Op: "object.EnsureBucket", Kind: classifyMinio(err), Err: err}
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, id string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, id, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return &Error{Op: "object.Put", Kind: classifyMinio(err), Err: err}
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, &Error{Op: "object.Get", Kind: classifyMinio(err), Err: err}
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &Error{Op: "object.Get", Kind: classifyMinio(err), Err: err}
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return &Error{Op: "object.Delete", Kind: classifyMinio(err), Err: err}
	}
	return nil
}

func (s *MinioStore) SignURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignTTL
	}
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, id, ttl, url.Values{})
	if err != nil {
		return "", &Error{Op: "object.SignURL", Kind: classifyMinio(err), Err: err}
	}
	return signed.String(), nil
}

// classifyMinio reduces a MinIO client error to a Kind.
func classifyMinio(err error) Kind {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return KindNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return KindPermission
	case "SlowDown", "ServiceUnavailable", "RequestTimeout":
		return KindTransient
	}
	if resp.StatusCode == http.StatusNotFound {
		return KindNotFound
	}
	return classifyNetwork(err, KindUnknown)
}
