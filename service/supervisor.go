package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"stream-moderator/constant"
	"stream-moderator/dto"
	"stream-moderator/entities"
	"stream-moderator/registry"
)

type SupervisorOptions struct {
	Capture      CaptureOptions
	Pipeline     PipelineOptions
	ProbeTimeout time.Duration
	// ShutdownTimeout bounds the wait for in-flight segments; zero waits
	// until they finish.
	ShutdownTimeout time.Duration
}

func DefaultSupervisorOptions() SupervisorOptions {
	capture := DefaultCaptureOptions()
	return SupervisorOptions{
		Capture:         capture,
		Pipeline:        DefaultPipelineOptions(),
		ProbeTimeout:    15 * time.Second,
		ShutdownTimeout: capture.SegmentDuration + capture.Grace + 30*time.Second,
	}
}

type streamHandle struct {
	session  *captureSession
	pipeline *Pipeline
}

// Supervisor owns the capture sessions and pipelines of all registered
// streams and keeps declared status in line with what is actually running.
type Supervisor struct {
	mu       sync.Mutex
	ctx      context.Context
	registry StreamRegistry
	caps     Capabilities
	archive  Archiver
	evidence EvidenceStore
	opts     SupervisorOptions
	handles  map[string]*streamHandle
}

// NewSupervisor binds sessions to ctx: cancelling it asks every session to
// finish its current segment and exit.
func NewSupervisor(ctx context.Context, reg StreamRegistry, caps Capabilities, archive Archiver, evidence EvidenceStore, opts SupervisorOptions) *Supervisor {
	return &Supervisor{
		ctx:      ctx,
		registry: reg,
		caps:     caps,
		archive:  archive,
		evidence: evidence,
		opts:     opts,
		handles:  make(map[string]*streamHandle),
	}
}

func succeeded(id, msg string) dto.ActionResult {
	return dto.ActionResult{StreamID: id, Success: true, Message: msg}
}

func failed(id, msg string) dto.ActionResult {
	return dto.ActionResult{StreamID: id, Success: false, Message: msg}
}

// Add probes the endpoint and registers the stream. A failed probe rejects
// the stream unless IgnoreError is set.
func (s *Supervisor) Add(ctx context.Context, req dto.AddStreamRequest) dto.AddStreamResponse {
	var probe *dto.ConnectionTest
	if s.caps.Prober != nil && req.URL != "" {
		ok, msg := s.caps.Prober.Probe(ctx, req.URL, s.opts.ProbeTimeout)
		probe = &dto.ConnectionTest{Success: ok, Message: msg}
		if !ok && !req.IgnoreError {
			return dto.AddStreamResponse{
				Success:        false,
				Message:        "connection test failed: " + msg,
				ConnectionTest: probe,
			}
		}
	}

	id, err := s.registry.Add(ctx, req.ClassroomID, req.TeacherName, req.URL)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidStream) {
			return dto.AddStreamResponse{Success: false, Message: err.Error(), ConnectionTest: probe}
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("stream_id", id).Msg("stream added but not persisted")
	}
	return dto.AddStreamResponse{
		Success:        true,
		Message:        "stream added",
		StreamID:       id,
		ConnectionTest: probe,
	}
}

// Remove stops any running session and drops the stream from the registry.
func (s *Supervisor) Remove(ctx context.Context, id string) dto.ActionResult {
	s.mu.Lock()
	if h, ok := s.handles[id]; ok {
		h.session.Stop()
		h.pipeline.Close()
		delete(s.handles, id)
	}
	s.mu.Unlock()

	removed, err := s.registry.Remove(ctx, id)
	if !removed {
		return failed(id, "stream not found: "+id)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stream_id", id).Msg("stream removed but not persisted")
	}
	return succeeded(id, "stream removed")
}

// Start launches a capture session unless one is already alive. It is
// idempotent for running streams.
func (s *Supervisor) Start(ctx context.Context, id string) dto.ActionResult {
	s.mu.Lock()
	res, change, session := s.startLocked(ctx, id)
	s.mu.Unlock()

	change.Publish(ctx)
	if session != nil {
		go session.Run(s.ctx)
	}
	return res
}

func (s *Supervisor) startLocked(ctx context.Context, id string) (dto.ActionResult, registry.Change, *captureSession) {
	stream, ok := s.registry.Get(id)
	if !ok {
		return failed(id, "stream not found: "+id), registry.Change{}, nil
	}
	if h, ok := s.handles[id]; ok {
		if h.session.Alive() {
			if stream.Status == constant.StreamStatusRunning {
				return succeeded(id, "recording already running"), registry.Change{}, nil
			}
			return failed(id, fmt.Sprintf("previous session is still %s, retry once it has stopped", stream.Status)), registry.Change{}, nil
		}
		h.pipeline.Close()
		delete(s.handles, id)
	}
	if s.ctx.Err() != nil {
		return failed(id, "supervisor is shutting down"), registry.Change{}, nil
	}

	pipeline := NewPipeline(stream.StreamConfig, s.caps, s.archive, s.evidence, s.opts.Pipeline)
	session := newCaptureSession(stream.StreamConfig, s.caps.Capturer, s.registry, pipeline.Submit, s.opts.Capture)

	change, err := s.registry.Apply(ctx, id, func(entities.StreamState) entities.StreamState {
		return entities.StreamState{Status: constant.StreamStatusRunning}
	})
	if errors.Is(err, registry.ErrStreamNotFound) {
		return failed(id, "stream not found: "+id), registry.Change{}, nil
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stream_id", id).Msg("running status not persisted")
	}

	// workers drain the queue after shutdown; Close ends them
	pipeline.Start(context.WithoutCancel(s.ctx))
	s.handles[id] = &streamHandle{session: session, pipeline: pipeline}
	return succeeded(id, "recording started"), change, session
}

// Stop requests the session to finish its current segment. It never clears
// an error status.
func (s *Supervisor) Stop(ctx context.Context, id string) dto.ActionResult {
	s.mu.Lock()
	res, change, session := s.stopLocked(ctx, id)
	s.mu.Unlock()

	change.Publish(ctx)
	if session != nil {
		session.Stop()
	}
	return res
}

func (s *Supervisor) stopLocked(ctx context.Context, id string) (dto.ActionResult, registry.Change, *captureSession) {
	stream, ok := s.registry.Get(id)
	if !ok {
		return failed(id, "stream not found: "+id), registry.Change{}, nil
	}

	h, tracked := s.handles[id]
	if !tracked || !h.session.Alive() {
		var change registry.Change
		if stream.Status == constant.StreamStatusRunning || stream.Status == constant.StreamStatusStopping {
			change = s.demote(ctx, id)
		}
		return succeeded(id, "recording already stopped"), change, nil
	}

	if stream.Status == constant.StreamStatusError {
		return succeeded(id, "stream is in error, session is exiting"), registry.Change{}, h.session
	}
	change, err := s.registry.Apply(ctx, id, func(st entities.StreamState) entities.StreamState {
		if st.Status != constant.StreamStatusError {
			st.Status = constant.StreamStatusStopping
		}
		return st
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stream_id", id).Msg("stopping status not persisted")
	}
	return succeeded(id, "stopping recording after the current segment"), change, h.session
}

func (s *Supervisor) StartAll(ctx context.Context) []dto.ActionResult {
	streams := s.registry.List()
	results := make([]dto.ActionResult, 0, len(streams))
	for _, stream := range streams {
		results = append(results, s.Start(ctx, stream.StreamID))
	}
	return results
}

func (s *Supervisor) StopAll(ctx context.Context) []dto.ActionResult {
	streams := s.registry.List()
	results := make([]dto.ActionResult, 0, len(streams))
	for _, stream := range streams {
		results = append(results, s.Stop(ctx, stream.StreamID))
	}
	return results
}

// Reconcile reclaims exited sessions and demotes their stream to stopped
// unless it ended in error. It returns the reclaimed stream ids.
func (s *Supervisor) Reconcile(ctx context.Context) []string {
	s.mu.Lock()
	var reclaimed []string
	var changes []registry.Change
	for id, h := range s.handles {
		if h.session.Alive() {
			continue
		}
		h.pipeline.Close()
		delete(s.handles, id)
		changes = append(changes, s.demote(ctx, id))
		reclaimed = append(reclaimed, id)
	}
	s.mu.Unlock()

	for _, c := range changes {
		c.Publish(ctx)
	}
	if len(reclaimed) > 0 {
		zerolog.Ctx(ctx).Info().Strs("stream_ids", reclaimed).Msg("reclaimed finished recording sessions")
	}
	return reclaimed
}

func (s *Supervisor) demote(ctx context.Context, id string) registry.Change {
	change, err := s.registry.Apply(ctx, id, func(st entities.StreamState) entities.StreamState {
		if st.Status != constant.StreamStatusError {
			st.Status = constant.StreamStatusStopped
		}
		return st
	})
	if err != nil && !errors.Is(err, registry.ErrStreamNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stream_id", id).Msg("stopped status not persisted")
	}
	return change
}

func (s *Supervisor) Status() []dto.StreamView {
	streams := s.registry.List()
	views := make([]dto.StreamView, 0, len(streams))
	for _, st := range streams {
		views = append(views, View(st))
	}
	return views
}

func View(st entities.Stream) dto.StreamView {
	return dto.StreamView{
		ID:          st.StreamID,
		Number:      st.Number,
		ClassroomID: st.ClassroomID,
		TeacherName: st.TeacherName,
		URL:         st.URL,
		Status:      st.Status,
		LastError:   st.LastError,
	}
}

// Sessions returns the number of capture sessions still alive.
func (s *Supervisor) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, h := range s.handles {
		if h.session.Alive() {
			n++
		}
	}
	return n
}

// Run reconciles on every tick until ctx is done, then shuts down.
func (s *Supervisor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx := context.WithoutCancel(ctx)
			if s.opts.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.opts.ShutdownTimeout)
				defer cancel()
			}
			s.Shutdown(shutdownCtx)
			return nil
		case <-ticker.C:
			s.Reconcile(ctx)
		}
	}
}

// Shutdown asks every session to stop, waits for them to exit, then closes
// the pipelines and waits for queued segments to drain. ctx bounds the whole
// wait.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	handles := make([]*streamHandle, 0, len(s.handles))
	for _, h := range s.handles {
		h.session.Stop()
		handles = append(handles, h)
	}
	s.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	for _, h := range handles {
		select {
		case <-h.session.Done():
		case <-ctx.Done():
			logger.Warn().Msg("shutdown deadline reached with sessions still recording")
			return
		}
	}
	logger.Info().Int("sessions", len(handles)).Msg("recording sessions stopped")

	for _, h := range handles {
		h.pipeline.Close()
	}
	for _, h := range handles {
		drained := make(chan struct{})
		go func() {
			h.pipeline.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			logger.Warn().Msg("shutdown deadline reached with segments still processing")
			return
		}
	}
	logger.Info().Msg("segment processing drained")
}
