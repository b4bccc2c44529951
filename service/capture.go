package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"stream-moderator/constant"
	"stream-moderator/entities"
	"stream-moderator/registry"
)

type CaptureOptions struct {
	SegmentDuration time.Duration
	Grace           time.Duration
	MinSegmentBytes int64
	MaxRetries      int
	RetryDelay      time.Duration
}

func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		SegmentDuration: 300 * time.Second,
		Grace:           30 * time.Second,
		MinSegmentBytes: 10000,
		MaxRetries:      3,
		RetryDelay:      5 * time.Second,
	}
}

// captureSession is the recording loop of one stream. Stop is cooperative:
// it is observed between segments, never during one.
type captureSession struct {
	id       uuid.UUID
	stream   entities.StreamConfig
	capturer Capturer
	states   StateStore
	submit   func(entities.Segment) error
	opts     CaptureOptions
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newCaptureSession(stream entities.StreamConfig, capturer Capturer, states StateStore, submit func(entities.Segment) error, opts CaptureOptions) *captureSession {
	return &captureSession{
		id:       uuid.New(),
		stream:   stream,
		capturer: capturer,
		states:   states,
		submit:   submit,
		opts:     opts,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *captureSession) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *captureSession) Done() <-chan struct{} {
	return s.done
}

func (s *captureSession) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *captureSession) stopRequested() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *captureSession) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx).With().
		Str("stream_id", s.stream.StreamID).
		Str("session_id", s.id.String()).
		Logger()
	ctx = logger.WithContext(ctx)
	// captures and state writes must finish even when ctx is cancelled
	detached := context.WithoutCancel(ctx)

	defer func() {
		_, err := s.states.Transition(detached, s.stream.StreamID, func(st entities.StreamState) entities.StreamState {
			if st.Status != constant.StreamStatusError {
				st.Status = constant.StreamStatusStopped
			}
			return st
		})
		if err != nil && !errors.Is(err, registry.ErrStreamNotFound) {
			logger.Error().Err(err).Msg("failed to persist final stream state")
		}
		logger.Info().Msg("recording session finished")
		close(s.done)
	}()

	retry := backoff.NewConstantBackOff(s.opts.RetryDelay)
	index := 1
	failures := 0

	logger.Info().Str("url", s.stream.URL).Msg("recording session started")
	for !s.stopRequested() && ctx.Err() == nil {
		logger.Info().Int("segment", index).Msg("capturing segment")
		seg, err := s.captureOnce(detached, index)
		if err == nil {
			failures = 0
			logger.Info().Int("segment", index).Int64("size_bytes", seg.Size).Str("path", seg.Path).Msg("segment captured")
			if err := s.submit(seg); err != nil {
				logger.Warn().Err(err).Int("segment", index).Str("path", seg.Path).Msg("segment not queued for processing")
			}
			index++
			continue
		}

		failures++
		logger.Error().Err(err).Int("segment", index).Int("failures", failures).Msg("segment capture failed")
		if failures >= s.opts.MaxRetries {
			msg := fmt.Sprintf("capture failed %d consecutive times: %v", failures, err)
			_, terr := s.states.Transition(detached, s.stream.StreamID, func(st entities.StreamState) entities.StreamState {
				return entities.StreamState{Status: constant.StreamStatusError, LastError: msg}
			})
			if terr != nil && !errors.Is(terr, registry.ErrStreamNotFound) {
				logger.Error().Err(terr).Msg("failed to persist error state")
			}
			logger.Error().Int("failures", failures).Msg("too many consecutive capture failures, recording stopped")
			return
		}

		select {
		case <-time.After(retry.NextBackOff()):
		case <-s.stop:
		case <-ctx.Done():
		}
	}
}

func (s *captureSession) captureOnce(ctx context.Context, index int) (entities.Segment, error) {
	startedAt := s.now()
	path := filepath.Join(s.stream.VideosDir, fmt.Sprintf("%s_%03d.mp4", startedAt.Format("20060102_150405"), index))
	timeout := s.opts.SegmentDuration + s.opts.Grace

	output, err := s.capturer.Capture(ctx, s.stream.URL, path, s.opts.SegmentDuration, timeout)
	if err != nil {
		removePartial(ctx, path)
		if diag := lastLines(output, 200); diag != "" {
			return entities.Segment{}, fmt.Errorf("%w: %s", err, diag)
		}
		return entities.Segment{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		removePartial(ctx, path)
		return entities.Segment{}, fmt.Errorf("segment output missing: %w", err)
	}
	if info.Size() <= s.opts.MinSegmentBytes {
		removePartial(ctx, path)
		return entities.Segment{}, fmt.Errorf("segment too small: %d bytes", info.Size())
	}

	return entities.Segment{
		StreamID:  s.stream.StreamID,
		Index:     index,
		StartedAt: startedAt,
		Duration:  s.opts.SegmentDuration,
		Path:      path,
		Size:      info.Size(),
	}, nil
}

func removePartial(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to remove partial segment")
	}
}

// lastLines keeps the tail of diagnostic output, where ffmpeg reports the
// actual failure.
func lastLines(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return "..." + string(runes[len(runes)-max:])
}
