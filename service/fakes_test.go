package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"stream-moderator/constant"
	"stream-moderator/registry"
	"stream-moderator/repository"
)

var errConnRefused = errors.New("exit status 1")

type captureFunc func(ctx context.Context, call int, target string) (string, error)

type fakeCapturer struct {
	calls atomic.Int32
	fn    captureFunc
}

func (f *fakeCapturer) Capture(ctx context.Context, _, target string, _, _ time.Duration) (string, error) {
	call := int(f.calls.Add(1))
	return f.fn(ctx, call, target)
}

func writeBytes(path string, n int) error {
	return os.WriteFile(path, make([]byte, n), 0o644)
}

func capturesOK(size int, delay time.Duration) captureFunc {
	return func(_ context.Context, _ int, target string) (string, error) {
		time.Sleep(delay)
		return "", writeBytes(target, size)
	}
}

func capturesFail(_ context.Context, _ int, target string) (string, error) {
	_ = writeBytes(target, 10)
	return "rtsp://cam: Connection refused", errConnRefused
}

type fakeProber struct {
	ok  bool
	msg string
}

func (f fakeProber) Probe(context.Context, string, time.Duration) (bool, string) {
	return f.ok, f.msg
}

type fakeExtractor struct {
	calls    atomic.Int32
	finished atomic.Int32
	size     int
	delay    time.Duration
	err      error
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, _, audioPath string) error {
	f.calls.Add(1)
	defer f.finished.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return f.err
	}
	return writeBytes(audioPath, f.size)
}

type fakeTranscriber struct {
	calls atomic.Int32
	text  string
	err   error
}

func (f *fakeTranscriber) Transcribe(context.Context, string, string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type fakeClassifier struct {
	calls     atomic.Int32
	narrative string
	err       error
}

func (f *fakeClassifier) Classify(context.Context, string) (string, error) {
	f.calls.Add(1)
	return f.narrative, f.err
}

type archived struct {
	classroomID, teacherName, contentType, original, analysis string
}

type fakeArchive struct {
	mu      sync.Mutex
	records []archived
	err     error
}

func (f *fakeArchive) Record(_ context.Context, classroomID, teacherName, contentType, original, analysis string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, archived{classroomID, teacherName, contentType, original, analysis})
	return nil
}

func (f *fakeArchive) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeEvidence struct {
	mu       sync.Mutex
	streamID string
	files    []string
}

func (f *fakeEvidence) Upload(_ context.Context, streamID string, files ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamID = streamID
	f.files = append(f.files, files...)
	return nil
}

func testCaptureOptions() CaptureOptions {
	return CaptureOptions{
		SegmentDuration: time.Second,
		Grace:           time.Second,
		MinSegmentBytes: 100,
		MaxRetries:      3,
		RetryDelay:      time.Millisecond,
	}
}

func testPipelineOptions() PipelineOptions {
	return PipelineOptions{
		Workers:            1,
		QueueSize:          4,
		Language:           "zh",
		MinAudioBytes:      10,
		MinTranscriptChars: 10,
		ContentType:        constant.ContentTypeInappropriateSpeech,
	}
}

// newTestRegistry avoids t.TempDir: pipeline workers may still be writing
// artifacts when the test returns.
func newTestRegistry(t *testing.T, opts ...registry.Option) *registry.Registry {
	t.Helper()
	dir, err := os.MkdirTemp("", "stream-moderator-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return registry.New(repository.NewFileStore(filepath.Join(dir, "rtsp_config.json")), filepath.Join(dir, "captured_videos"), opts...)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
