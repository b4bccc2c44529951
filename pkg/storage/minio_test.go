package storage

import (
	"context"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	exists  bool
	made    []string
	put     []string
	failKey string
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeClient) FPutObject(_ context.Context, _, objectName, _ string, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if objectName == f.failKey {
		return minio.UploadInfo{}, assert.AnError
	}
	f.put = append(f.put, objectName)
	return minio.UploadInfo{Key: objectName}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "A1_Zhang/202610/20261016_093000_001.mp4",
		ObjectKey("A1_Zhang", "/data/captured_videos/A1_Zhang/videos/20261016_093000_001.mp4", at))
}

func TestUploadContinuesPastFailures(t *testing.T) {
	client := &fakeClient{failKey: "A1_Zhang/202610/b.txt"}
	store := newEvidenceStore(client, "evidence")
	store.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }

	err := store.Upload(context.Background(), "A1_Zhang", "/x/a.mp4", "/x/b.txt", "/x/c_analysis.txt")

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"A1_Zhang/202610/a.mp4", "A1_Zhang/202610/c_analysis.txt"}, client.put)
}

func TestEnsureBucket(t *testing.T) {
	missing := &fakeClient{}
	require.NoError(t, newEvidenceStore(missing, "evidence").EnsureBucket(context.Background()))
	assert.Equal(t, []string{"evidence"}, missing.made)

	present := &fakeClient{exists: true}
	require.NoError(t, newEvidenceStore(present, "evidence").EnsureBucket(context.Background()))
	assert.Empty(t, present.made)
}
