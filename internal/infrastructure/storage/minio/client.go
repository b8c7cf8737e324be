// Package minio uploads featurization artifacts (xyz geometry exports,
// adjacency matrices, per-structure logs) to S3-compatible object storage.
package minio

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// ErrClientClosed is returned by operations after Close.
var ErrClientClosed = errors.New(errors.ErrCodeStorageError, "minio client is closed")

// API is the subset of the MinIO SDK the artifact store depends on,
// abstracted for testing.
type API interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// Client wraps the MinIO SDK with lifecycle management and bucket setup.
type Client struct {
	api    API
	config config.MinIOConfig
	logger logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient connects to the object store, verifies connectivity and makes
// sure the artifact bucket exists.
func NewClient(cfg config.MinIOConfig, logger logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio bucket is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create minio client")
	}

	c := &Client{api: api, config: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to connect to minio at "+cfg.Endpoint)
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("minio client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
	)
	return c, nil
}

// EnsureBucket creates the artifact bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{}); err != nil {
		// Another process may have created it in between.
		if exists, checkErr := c.api.BucketExists(ctx, c.config.Bucket); checkErr == nil && exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create bucket "+c.config.Bucket)
	}
	c.logger.Info("bucket created", logging.String("bucket", c.config.Bucket))
	return nil
}

// Bucket returns the configured artifact bucket name.
func (c *Client) Bucket() string {
	return c.config.Bucket
}

// API exposes the underlying SDK handle.
func (c *Client) API() API {
	return c.api
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close marks the client closed. The MinIO SDK holds no persistent
// connection, so this only gates further calls.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
