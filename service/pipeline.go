package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"stream-moderator/constant"
	"stream-moderator/entities"
	"stream-moderator/pkg/worker"
)

type PipelineOptions struct {
	Workers            int
	QueueSize          int
	Language           string
	MinAudioBytes      int64
	MinTranscriptChars int
	ContentType        string
}

func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		Workers:            2,
		QueueSize:          64,
		Language:           "zh",
		MinAudioBytes:      1000,
		MinTranscriptChars: 10,
		ContentType:        constant.ContentTypeInappropriateSpeech,
	}
}

// Outcome is the terminal state of one segment in the pipeline.
type Outcome string

const (
	OutcomeExtractFailed    Outcome = "extract_failed"
	OutcomeTranscribeFailed Outcome = "transcribe_failed"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeClassifyFailed   Outcome = "classify_failed"
	OutcomeClean            Outcome = "clean"
	OutcomeFlagged          Outcome = "flagged"
	OutcomeArchiveFailed    Outcome = "archive_failed"
)

// Pipeline turns captured segments of one stream into transcripts,
// analyses and archive records. Failures never reach the stream's status.
type Pipeline struct {
	stream      entities.StreamConfig
	extractor   Extractor
	transcriber Transcriber
	classifier  Classifier
	archive     Archiver
	evidence    EvidenceStore
	opts        PipelineOptions
	pool        *worker.Pool[entities.Segment]
}

func NewPipeline(stream entities.StreamConfig, caps Capabilities, archive Archiver, evidence EvidenceStore, opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		stream:      stream,
		extractor:   caps.Extractor,
		transcriber: caps.Transcriber,
		classifier:  caps.Classifier,
		archive:     archive,
		evidence:    evidence,
		opts:        opts,
	}
	p.pool = worker.NewPool[entities.Segment](opts.Workers, opts.QueueSize, func(ctx context.Context, seg entities.Segment) {
		p.Process(ctx, seg)
	})
	return p
}

func (p *Pipeline) Start(ctx context.Context) {
	p.pool.Start(ctx)
}

func (p *Pipeline) Submit(seg entities.Segment) error {
	return p.pool.Submit(seg)
}

// Close stops intake; queued segments are still processed.
func (p *Pipeline) Close() {
	p.pool.Close()
}

func (p *Pipeline) Wait() {
	p.pool.Wait()
}

// IsFlagged reports whether a classifier narrative carries the positive marker.
func IsFlagged(narrative string) bool {
	return strings.Contains(narrative, constant.FlaggedMarker)
}

func (p *Pipeline) Process(ctx context.Context, seg entities.Segment) Outcome {
	logger := zerolog.Ctx(ctx).With().
		Str("stream_id", p.stream.StreamID).
		Int("segment", seg.Index).
		Logger()
	base := seg.BaseName()

	audioPath := filepath.Join(p.stream.AudioDir, base+".wav")
	if err := p.extractor.ExtractAudio(ctx, seg.Path, audioPath); err != nil {
		logger.Error().Err(err).Str("video", seg.Path).Msg("audio extraction failed")
		return OutcomeExtractFailed
	}
	info, err := os.Stat(audioPath)
	if err != nil || info.Size() < p.opts.MinAudioBytes {
		logger.Error().Err(err).Str("audio", audioPath).Msg("audio output missing or too small")
		return OutcomeExtractFailed
	}

	transcriptPath := filepath.Join(p.stream.TranscriptDir, base+".txt")
	text, err := p.transcriber.Transcribe(ctx, audioPath, p.opts.Language)
	if err != nil {
		logger.Error().Err(err).Str("audio", audioPath).Msg("transcription failed")
		placeholder := fmt.Sprintf("Transcription failed: %v\nCheck the speech-to-text service and the audio format.\n", err)
		writeArtifact(logger, transcriptPath, placeholder)
		return OutcomeTranscribeFailed
	}
	writeArtifact(logger, transcriptPath, text)

	if utf8.RuneCountInString(strings.TrimSpace(text)) < p.opts.MinTranscriptChars {
		logger.Info().Int("chars", utf8.RuneCountInString(text)).Msg("transcript too short, skipping analysis")
		return OutcomeSkipped
	}

	narrative, err := p.classifier.Classify(ctx, text)
	if err != nil {
		logger.Error().Err(err).Msg("content analysis failed")
		writeArtifact(logger, filepath.Join(p.stream.AnalysisDir, base+"_analysis_error.txt"), fmt.Sprintf("Analysis failed: %v\n", err))
		return OutcomeClassifyFailed
	}
	analysisPath := filepath.Join(p.stream.AnalysisDir, base+"_analysis.txt")
	writeArtifact(logger, analysisPath, narrative)

	if !IsFlagged(narrative) {
		logger.Info().Msg("segment analysed, nothing flagged")
		return OutcomeClean
	}

	if err := p.archive.Record(ctx, p.stream.ClassroomID, p.stream.TeacherName, p.opts.ContentType, text, narrative); err != nil {
		logger.Error().Err(err).Msg("failed to archive flagged segment")
		return OutcomeArchiveFailed
	}
	logger.Warn().Str("classroom_id", p.stream.ClassroomID).Str("teacher_name", p.stream.TeacherName).Msg("inappropriate content recorded")

	if p.evidence != nil {
		if err := p.evidence.Upload(ctx, p.stream.StreamID, seg.Path, transcriptPath, analysisPath); err != nil {
			logger.Warn().Err(err).Msg("failed to upload evidence")
		}
	}
	return OutcomeFlagged
}

func writeArtifact(logger zerolog.Logger, path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to write artifact")
	}
}
