package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"stream-moderator/constant"
	"stream-moderator/dto"
	"stream-moderator/entities"
	"stream-moderator/events"
)

// NoRecords is returned by Latest when the current month has no partition.
const NoRecords = "No moderation records yet"

// Archive is an append-only log of moderation records partitioned by
// calendar month. One mutex serialises appends and partition rotation.
type Archive struct {
	mu    sync.Mutex
	dir   string
	month string
	path  string
	now   func() time.Time
	sink  events.Sink
}

type Option func(*Archive)

func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		a.now = now
	}
}

// WithSink is notified after every successful append.
func WithSink(sink events.Sink) Option {
	return func(a *Archive) {
		a.sink = sink
	}
}

func New(dir string, opts ...Option) (*Archive, error) {
	a := &Archive{
		dir:  dir,
		now:  time.Now,
		sink: events.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return a, nil
}

// PartitionName is the file name of the partition holding records of month t.
func PartitionName(t time.Time) string {
	return fmt.Sprintf("inappropriate_content_%s.txt", t.Format("200601"))
}

// rotateLocked points the archive at the partition for the current month.
func (a *Archive) rotateLocked(now time.Time) {
	month := now.Format("200601")
	if month == a.month {
		return
	}
	a.month = month
	a.path = filepath.Join(a.dir, PartitionName(now))
}

// createLocked writes the header if the current partition does not exist.
func (a *Archive) createLocked(ctx context.Context, now time.Time) error {
	_, err := os.Stat(a.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	header := fmt.Sprintf("# Moderation records - %s\n# Format: [datetime] [classroom] [teacher] [type] [content]\n\n", now.Format("2006-01"))
	if _, err := f.WriteString(header); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("partition", a.path).Msg("created moderation archive partition")
	return nil
}

func (a *Archive) Record(ctx context.Context, classroomID, teacherName, contentType, originalText, analysisText string) error {
	a.mu.Lock()
	now := a.now()
	record := entities.NewContentRecord(now, classroomID, teacherName, contentType, originalText, analysisText)
	block := record.Format()
	err := a.appendLocked(ctx, now, block)
	a.mu.Unlock()
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("classroom_id", classroomID).Str("teacher_name", teacherName).Msg("failed to append moderation record")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("record_id", record.ID.String()).
		Str("classroom_id", classroomID).
		Str("teacher_name", teacherName).
		Str("content_type", contentType).
		Msg("moderation record appended")

	a.sink.Publish(ctx, dto.Event{
		Type:     constant.EventContentUpdate,
		StreamID: classroomID + "_" + teacherName,
		Content:  block,
		At:       now,
	})
	return nil
}

func (a *Archive) appendLocked(ctx context.Context, now time.Time, block string) error {
	a.rotateLocked(now)
	if err := a.createLocked(ctx, now); err != nil {
		return fmt.Errorf("create partition: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(block); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Latest returns the whole current partition. limit is accepted for
// interface compatibility and ignored: callers rely on full-content reads.
func (a *Archive) Latest(limit int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rotateLocked(a.now())
	data, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return NoRecords, nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CurrentPartition is the path of the partition for the current month.
func (a *Archive) CurrentPartition() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rotateLocked(a.now())
	return a.path
}
