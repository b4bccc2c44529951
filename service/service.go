package service

import (
	"context"
	"time"

	"stream-moderator/entities"
	"stream-moderator/registry"
)

// Capturer records one bounded-duration segment of sourceURL into
// targetPath. The returned string carries the tool's diagnostic output.
type Capturer interface {
	Capture(ctx context.Context, sourceURL, targetPath string, duration, timeout time.Duration) (string, error)
}

type Prober interface {
	Probe(ctx context.Context, sourceURL string, timeout time.Duration) (bool, string)
}

// Extractor derives a mono, fixed sample-rate audio file from a segment.
type Extractor interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
}

// Transcriber returns an error on failure; an empty string with a nil
// error is a valid, silent transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// Classifier returns a narrative that ends with constant.FlaggedMarker or
// constant.NotFlaggedMarker.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

type Archiver interface {
	Record(ctx context.Context, classroomID, teacherName, contentType, originalText, analysisText string) error
}

// EvidenceStore keeps copies of the artifacts behind a flagged segment.
type EvidenceStore interface {
	Upload(ctx context.Context, streamID string, files ...string) error
}

// StateStore is the part of the registry a capture session needs.
type StateStore interface {
	Get(id string) (entities.Stream, bool)
	Transition(ctx context.Context, id string, fn func(entities.StreamState) entities.StreamState) (entities.StreamState, error)
}

// StreamRegistry is the registry surface the supervisor drives.
type StreamRegistry interface {
	StateStore
	Apply(ctx context.Context, id string, fn func(entities.StreamState) entities.StreamState) (registry.Change, error)
	Add(ctx context.Context, classroomID, teacherName, url string) (string, error)
	Remove(ctx context.Context, id string) (bool, error)
	List() []entities.Stream
}

type Capabilities struct {
	Capturer    Capturer
	Prober      Prober
	Extractor   Extractor
	Transcriber Transcriber
	Classifier  Classifier
}
