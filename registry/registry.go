package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"stream-moderator/constant"
	"stream-moderator/dto"
	"stream-moderator/entities"
	"stream-moderator/events"
	"stream-moderator/repository"
)

var (
	ErrStreamNotFound = errors.New("stream not found")
	ErrInvalidStream  = errors.New("invalid stream")
)

type entry struct {
	config entities.StreamConfig
	state  entities.StreamState
}

// Registry is the set of configured streams and their declared state. All
// mutation and persistence happens under one lock; readers get copies.
type Registry struct {
	mu      sync.RWMutex
	store   repository.StreamStore
	baseDir string
	sink    events.Sink
	order   []string
	streams map[string]*entry
}

type Option func(*Registry)

// WithSink publishes every persisted state transition.
func WithSink(sink events.Sink) Option {
	return func(r *Registry) {
		r.sink = sink
	}
}

func New(store repository.StreamStore, baseDir string, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		baseDir: baseDir,
		sink:    events.Discard,
		streams: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StreamID derives the stable identity of a stream.
func StreamID(classroomID, teacherName string) string {
	return classroomID + "_" + teacherName
}

func validate(classroomID, teacherName, url string) error {
	for name, v := range map[string]string{"classroom_id": classroomID, "teacher_name": teacherName, "rtsp_url": url} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidStream, name)
		}
	}
	for name, v := range map[string]string{"classroom_id": classroomID, "teacher_name": teacherName} {
		if strings.ContainsAny(v, `/\`) || strings.Contains(v, "..") {
			return fmt.Errorf("%w: %s must not contain path elements", ErrInvalidStream, name)
		}
	}
	return nil
}

// Add registers a stream, or updates the endpoint of an existing one in
// place. The returned error reports validation or persistence failures; in
// the latter case the in-memory change is kept.
func (r *Registry) Add(ctx context.Context, classroomID, teacherName, url string) (string, error) {
	if err := validate(classroomID, teacherName, url); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := StreamID(classroomID, teacherName)
	cfg := entities.NewStreamConfig(r.baseDir, id, classroomID, teacherName, url)
	if e, ok := r.streams[id]; ok {
		e.config = cfg
	} else {
		r.streams[id] = &entry{
			config: cfg,
			state:  entities.StreamState{Status: constant.StreamStatusStopped},
		}
		r.order = append(r.order, id)
	}
	ensureDirs(ctx, cfg)
	r.renumberLocked()

	zerolog.Ctx(ctx).Info().Str("stream_id", id).Str("url", url).Msg("stream registered")
	return id, r.saveLocked(ctx)
}

func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.streams[id]; !ok {
		return false, nil
	}
	delete(r.streams, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.renumberLocked()

	zerolog.Ctx(ctx).Info().Str("stream_id", id).Msg("stream removed")
	return true, r.saveLocked(ctx)
}

func (r *Registry) List() []entities.Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entities.Stream, 0, len(r.order))
	for _, id := range r.order {
		e := r.streams[id]
		out = append(out, entities.Stream{StreamConfig: e.config, StreamState: e.state})
	}
	return out
}

func (r *Registry) Get(id string) (entities.Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.streams[id]
	if !ok {
		return entities.Stream{}, false
	}
	return entities.Stream{StreamConfig: e.config, StreamState: e.state}, true
}

// ByNumber resolves a display ordinal to a stream. Ordinals change whenever
// the set changes, so callers must not hold on to them.
func (r *Registry) ByNumber(number int) (entities.Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if number < 1 || number > len(r.order) {
		return entities.Stream{}, false
	}
	e := r.streams[r.order[number-1]]
	return entities.Stream{StreamConfig: e.config, StreamState: e.state}, true
}

// Change is a persisted state transition that has not been published yet.
type Change struct {
	StreamID string
	Prev     entities.StreamState
	Next     entities.StreamState
	sink     events.Sink
}

func (c Change) Changed() bool {
	return c.sink != nil && c.Next != c.Prev
}

// Publish logs the change and hands it to the registry's sink. It is a no-op
// when nothing changed.
func (c Change) Publish(ctx context.Context) {
	if !c.Changed() {
		return
	}
	zerolog.Ctx(ctx).Info().
		Str("stream_id", c.StreamID).
		Str("from", c.Prev.Status.String()).
		Str("to", c.Next.Status.String()).
		Msg("stream status changed")
	c.sink.Publish(ctx, dto.Event{
		Type:      constant.EventStreamStatusChange,
		StreamID:  c.StreamID,
		Status:    c.Next.Status,
		LastError: c.Next.LastError,
		At:        time.Now(),
	})
}

// Apply applies fn to the stream's state atomically and persists the result.
// The caller publishes the returned change once it holds no locks.
func (r *Registry) Apply(ctx context.Context, id string, fn func(entities.StreamState) entities.StreamState) (Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.streams[id]
	if !ok {
		return Change{}, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}
	prev := e.state
	e.state = fn(prev)
	change := Change{StreamID: id, Prev: prev, Next: e.state, sink: r.sink}
	return change, r.saveLocked(ctx)
}

// Transition applies fn, persists the result and then publishes it.
func (r *Registry) Transition(ctx context.Context, id string, fn func(entities.StreamState) entities.StreamState) (entities.StreamState, error) {
	change, err := r.Apply(ctx, id, fn)
	change.Publish(ctx)
	return change.Next, err
}

// SetState overwrites the stream's state.
func (r *Registry) SetState(ctx context.Context, id string, state entities.StreamState) error {
	_, err := r.Transition(ctx, id, func(entities.StreamState) entities.StreamState {
		return state
	})
	return err
}

func (r *Registry) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx)
}

// Load replaces the in-memory set with the persisted one. Every stream comes
// back stopped: a crashed process must never look like it is recording.
func (r *Registry) Load(ctx context.Context) error {
	rows, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load streams: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.streams = make(map[string]*entry, len(rows))
	r.order = r.order[:0]
	for _, row := range rows {
		id := StreamID(row.ClassroomID, row.TeacherName)
		if _, dup := r.streams[id]; dup {
			continue
		}
		cfg := entities.NewStreamConfig(r.baseDir, id, row.ClassroomID, row.TeacherName, row.URL)
		r.streams[id] = &entry{
			config: cfg,
			state: entities.StreamState{
				Status:    constant.StreamStatusStopped,
				LastError: row.LastError,
			},
		}
		r.order = append(r.order, id)
		ensureDirs(ctx, cfg)
	}
	r.renumberLocked()

	zerolog.Ctx(ctx).Info().Int("streams", len(r.order)).Msg("stream configuration loaded")
	return nil
}

func (r *Registry) renumberLocked() {
	for i, id := range r.order {
		r.streams[id].config.Number = i + 1
	}
}

func (r *Registry) saveLocked(ctx context.Context) error {
	rows := make([]entities.StreamRow, 0, len(r.order))
	for i, id := range r.order {
		e := r.streams[id]
		rows = append(rows, entities.StreamRow{
			StreamID:    id,
			ClassroomID: e.config.ClassroomID,
			TeacherName: e.config.TeacherName,
			URL:         e.config.URL,
			Status:      e.state.Status.String(),
			LastError:   e.state.LastError,
			Position:    i,
		})
	}
	if err := r.store.Save(ctx, rows); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save stream configuration")
		return fmt.Errorf("save streams: %w", err)
	}
	return nil
}

func ensureDirs(ctx context.Context, cfg entities.StreamConfig) {
	for _, dir := range cfg.Dirs() {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("stream_id", cfg.StreamID).Str("dir", dir).Msg("failed to create stream directory")
		}
	}
}
