package minio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// ArtifactInfo describes one stored artifact.
type ArtifactInfo struct {
	ObjectName   string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// ArtifactRepository stores featurization output files under a per-structure
// prefix in the artifact bucket. It satisfies the featurization service's
// artifact store port.
type ArtifactRepository struct {
	client        *Client
	logger        logging.Logger
	presignExpiry time.Duration
}

// NewArtifactRepository builds an ArtifactRepository on top of client.
func NewArtifactRepository(client *Client, logger logging.Logger) *ArtifactRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	expiry := client.config.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &ArtifactRepository{
		client:        client,
		logger:        logger,
		presignExpiry: expiry,
	}
}

// contentTypeFor maps artifact file extensions to MIME types. The xyz and
// net exports are plain text; descriptor corpora are CSV.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}

// Upload stores the file at localPath under objectName.
func (r *ArtifactRepository) Upload(ctx context.Context, localPath, objectName string) error {
	if r.client.Closed() {
		return ErrClientClosed
	}
	if objectName == "" {
		return errors.New(errors.ErrCodeValidation, "object name required")
	}
	if _, err := os.Stat(localPath); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "artifact file not readable: "+localPath)
	}

	info, err := r.client.API().FPutObject(ctx, r.client.Bucket(), objectName, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(objectName),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload "+objectName)
	}

	r.logger.Debug("artifact uploaded",
		logging.String("object", objectName),
		logging.Int64("size", info.Size),
	)
	return nil
}

// Download copies an artifact from the bucket to localPath.
func (r *ArtifactRepository) Download(ctx context.Context, objectName, localPath string) error {
	if r.client.Closed() {
		return ErrClientClosed
	}

	obj, err := r.client.API().GetObject(ctx, r.client.Bucket(), objectName, minio.GetObjectOptions{})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to get "+objectName)
	}
	defer obj.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create target directory")
	}
	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create "+localPath)
	}
	defer f.Close()

	if _, err := io.Copy(f, obj); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write "+localPath)
	}
	return nil
}

// Stat returns metadata for one artifact.
func (r *ArtifactRepository) Stat(ctx context.Context, objectName string) (*ArtifactInfo, error) {
	if r.client.Closed() {
		return nil, ErrClientClosed
	}
	info, err := r.client.API().StatObject(ctx, r.client.Bucket(), objectName, minio.StatObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat "+objectName)
	}
	return &ArtifactInfo{
		ObjectName:   info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
	}, nil
}

// List returns the artifacts stored under prefix, typically a structure
// name.
func (r *ArtifactRepository) List(ctx context.Context, prefix string) ([]ArtifactInfo, error) {
	if r.client.Closed() {
		return nil, ErrClientClosed
	}

	var out []ArtifactInfo
	for obj := range r.client.API().ListObjects(ctx, r.client.Bucket(), minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "failed to list artifacts")
		}
		out = append(out, ArtifactInfo{
			ObjectName:   obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
		})
	}
	return out, nil
}

// Remove deletes one artifact.
func (r *ArtifactRepository) Remove(ctx context.Context, objectName string) error {
	if r.client.Closed() {
		return ErrClientClosed
	}
	if err := r.client.API().RemoveObject(ctx, r.client.Bucket(), objectName, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to remove "+objectName)
	}
	return nil
}

// PresignDownload returns a time-limited URL for fetching an artifact
// without credentials.
func (r *ArtifactRepository) PresignDownload(ctx context.Context, objectName string) (string, error) {
	if r.client.Closed() {
		return "", ErrClientClosed
	}
	u, err := r.client.API().PresignedGetObject(ctx, r.client.Bucket(), objectName, r.presignExpiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign "+objectName)
	}
	return u.String(), nil
}
