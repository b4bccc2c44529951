package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

// objectClient is the subset of *minio.Client used here.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// EvidenceStore copies the artifacts of flagged segments to a bucket,
// grouped by stream and month.
type EvidenceStore struct {
	client objectClient
	bucket string
	now    func() time.Time
}

func NewEvidenceStore(client *minio.Client, bucket string) *EvidenceStore {
	return newEvidenceStore(client, bucket)
}

func newEvidenceStore(client objectClient, bucket string) *EvidenceStore {
	return &EvidenceStore{client: client, bucket: bucket, now: time.Now}
}

// ObjectKey places a local artifact under <stream>/<YYYYMM>/<file>.
func ObjectKey(streamID, localPath string, at time.Time) string {
	name := strings.ReplaceAll(filepath.Base(localPath), "\\", "/")
	return path.Join(streamID, at.Format("200601"), name)
}

func (s *EvidenceStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	zerolog.Ctx(ctx).Info().Str("bucket", s.bucket).Msg("evidence bucket created")
	return nil
}

// Upload puts every file, continuing past failures, and reports them joined.
func (s *EvidenceStore) Upload(ctx context.Context, streamID string, files ...string) error {
	at := s.now()
	var errs []error
	for _, file := range files {
		key := ObjectKey(streamID, file, at)
		if _, err := s.client.FPutObject(ctx, s.bucket, key, file, minio.PutObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", key, err))
			continue
		}
		zerolog.Ctx(ctx).Debug().Str("bucket", s.bucket).Str("object", key).Msg("evidence uploaded")
	}
	return errors.Join(errs...)
}
