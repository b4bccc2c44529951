package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stream-moderator/constant"
	"stream-moderator/dto"
	"stream-moderator/entities"
	"stream-moderator/events"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func TestLatestOnFreshArchive(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)

	content, err := a.Latest(100)

	require.NoError(t, err)
	assert.Equal(t, NoRecords, content)
}

func TestRecordCreatesPartitionWithHeader(t *testing.T) {
	dir := t.TempDir()
	c := &clock{t: time.Date(2026, 10, 16, 8, 0, 0, 0, time.Local)}
	a, err := New(dir, WithClock(c.Now))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, "A1", "Zhang", constant.ContentTypeInappropriateSpeech, "original", "analysis one"))
	require.NoError(t, a.Record(ctx, "A1", "Zhang", constant.ContentTypeInappropriateSpeech, "original", "analysis two"))

	data, err := os.ReadFile(filepath.Join(dir, "inappropriate_content_202610.txt"))
	require.NoError(t, err)
	text := string(data)
	assert.Equal(t, 1, strings.Count(text, "# Moderation records - 2026-10"))
	assert.Less(t, strings.Index(text, "analysis one"), strings.Index(text, "analysis two"))

	latest, err := a.Latest(1)
	require.NoError(t, err)
	assert.Equal(t, text, latest)
}

func TestRecordsRotateByMonth(t *testing.T) {
	dir := t.TempDir()
	c := &clock{t: time.Date(2026, 10, 31, 23, 59, 0, 0, time.Local)}
	a, err := New(dir, WithClock(c.Now))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, "A1", "Zhang", "t", "october", "october analysis"))
	c.Set(time.Date(2026, 11, 1, 0, 1, 0, 0, time.Local))

	latest, err := a.Latest(100)
	require.NoError(t, err)
	assert.Equal(t, NoRecords, latest)

	require.NoError(t, a.Record(ctx, "A1", "Zhang", "t", "november", "november analysis"))

	oct, err := os.ReadFile(filepath.Join(dir, "inappropriate_content_202610.txt"))
	require.NoError(t, err)
	nov, err := os.ReadFile(filepath.Join(dir, "inappropriate_content_202611.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(oct), "october analysis")
	assert.NotContains(t, string(oct), "november analysis")
	assert.Contains(t, string(nov), "november analysis")
	assert.Equal(t, filepath.Join(dir, "inappropriate_content_202611.txt"), a.CurrentPartition())
}

func TestConcurrentRecordsNeverInterleave(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := strings.Repeat(string(rune('a'+i)), 4096)
			assert.NoError(t, a.Record(ctx, "A1", "Zhang", "t", body, body))
		}(i)
	}
	wg.Wait()

	content, err := a.Latest(0)
	require.NoError(t, err)
	blocks := strings.Split(content, entities.RecordSeparator+"\n\n")
	// header + writers blocks, trailing empty string after the last separator
	require.Len(t, blocks, writers+1)
	for _, b := range blocks[:writers] {
		idx := strings.Index(b, "Analysis: ")
		require.GreaterOrEqual(t, idx, 0)
		analysis := strings.TrimSuffix(b[idx+len("Analysis: "):], "\n")
		require.Len(t, analysis, 4096)
		assert.Equal(t, strings.Repeat(analysis[:1], 4096), analysis)
	}
}

func TestRecordNotifiesSink(t *testing.T) {
	var got []dto.Event
	sink := events.SinkFunc(func(_ context.Context, e dto.Event) { got = append(got, e) })
	a, err := New(t.TempDir(), WithSink(sink))
	require.NoError(t, err)

	require.NoError(t, a.Record(context.Background(), "A1", "Zhang", "t", "text", "flagged narrative"))

	require.Len(t, got, 1)
	assert.Equal(t, constant.EventContentUpdate, got[0].Type)
	assert.Equal(t, "A1_Zhang", got[0].StreamID)
	assert.Contains(t, got[0].Content, "flagged narrative")
}

func TestRecordFailsWhenDirectoryVanishes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	a, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = a.Record(context.Background(), "A1", "Zhang", "t", "x", "y")

	assert.Error(t, err)
}
