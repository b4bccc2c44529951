package server

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"stream-moderator/archive"
	"stream-moderator/config"
	"stream-moderator/constant"
	"stream-moderator/dto"
	"stream-moderator/events"
	"stream-moderator/pkg/deepseek"
	"stream-moderator/pkg/ffmpeg"
	"stream-moderator/pkg/rabbitmq"
	"stream-moderator/pkg/storage"
	"stream-moderator/pkg/whisper"
	"stream-moderator/registry"
	"stream-moderator/repository"
	"stream-moderator/service"
)

// App holds the wired components of a running process.
type App struct {
	Registry   *registry.Registry
	Archive    *archive.Archive
	Supervisor *service.Supervisor
	Hub        *Hub
	Publisher  *rabbitmq.Publisher
	Conn       *amqp.Connection
}

// OpenStreamStore picks postgres when a database is configured and the
// JSON document otherwise.
func OpenStreamStore(ctx context.Context, cfg *config.Config) (repository.StreamStore, error) {
	if cfg.DB == nil {
		return repository.NewFileStore(cfg.Paths.StreamsFile), nil
	}
	store, err := repository.NewRepo(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

func NewCapabilities(ctx context.Context, cfg *config.Config) (service.Capabilities, error) {
	media := ffmpeg.New(cfg.FFmpeg.Binary, cfg.FFmpeg.ExtractTimeout)
	if path, err := media.Check(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("ffmpeg missing, capture and extraction will fail")
	} else {
		zerolog.Ctx(ctx).Info().Str("path", path).Msg("ffmpeg found")
	}

	transcriber, err := whisper.New(whisper.Config{
		Mode:    cfg.Whisper.Mode,
		BaseURL: cfg.Whisper.BaseURL,
		APIKey:  cfg.Whisper.APIKey,
		Model:   cfg.Whisper.Model,
		Binary:  cfg.Whisper.Binary,
		Timeout: cfg.Whisper.Timeout,
	})
	if err != nil {
		return service.Capabilities{}, err
	}

	classifier := deepseek.NewClient(deepseek.Config{
		BaseURL:     cfg.DeepSeek.BaseURL,
		APIKey:      cfg.DeepSeek.APIKey,
		Model:       cfg.DeepSeek.Model,
		Temperature: cfg.DeepSeek.Temperature,
		MaxTokens:   cfg.DeepSeek.MaxTokens,
		Timeout:     cfg.DeepSeek.Timeout,
	})
	if cfg.DeepSeek.APIKey == "" {
		zerolog.Ctx(ctx).Warn().Msg("deepseek api key not set, content analysis will fail")
	}

	return service.Capabilities{
		Capturer:    media,
		Prober:      media,
		Extractor:   media,
		Transcriber: transcriber,
		Classifier:  classifier,
	}, nil
}

func NewSupervisorOptions(cfg *config.Config) service.SupervisorOptions {
	return service.SupervisorOptions{
		Capture: service.CaptureOptions{
			SegmentDuration: cfg.Capture.SegmentDuration,
			Grace:           cfg.Capture.Grace,
			MinSegmentBytes: cfg.Capture.MinSegmentBytes,
			MaxRetries:      cfg.Capture.MaxRetries,
			RetryDelay:      cfg.Capture.RetryDelay,
		},
		Pipeline: service.PipelineOptions{
			Workers:            cfg.Pipeline.Workers,
			QueueSize:          cfg.Pipeline.QueueSize,
			Language:           cfg.Pipeline.Language,
			MinAudioBytes:      cfg.Pipeline.MinAudioBytes,
			MinTranscriptChars: cfg.Pipeline.MinTranscriptChars,
			ContentType:        constant.ContentTypeInappropriateSpeech,
		},
		ProbeTimeout:    cfg.Capture.ProbeTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Snapshot is what a new push client receives: every stream's status and
// the current archive partition.
func Snapshot(ctx context.Context, sup *service.Supervisor, arch *archive.Archive) func() []dto.Event {
	return func() []dto.Event {
		views := sup.Status()
		out := make([]dto.Event, 0, len(views)+1)
		for _, v := range views {
			out = append(out, dto.Event{
				Type:      constant.EventStreamStatusChange,
				StreamID:  v.ID,
				Status:    v.Status,
				LastError: v.LastError,
			})
		}
		content, err := arch.Latest(0)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to read moderation archive for snapshot")
			return out
		}
		return append(out, dto.Event{Type: constant.EventContentUpdate, Content: content})
	}
}

// Build wires every component. Broker and object storage are optional and
// skipped with a log line when unavailable.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Hub: NewHub(nil)}
	sinks := events.Fanout{app.Hub}

	if cfg.Queue != nil {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("continuing without control queue")
		} else {
			app.Conn = conn
			publisher, err := rabbitmq.NewPublisher(conn, cfg.Queue)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("continuing without event publishing")
			} else {
				app.Publisher = publisher
				sinks = append(sinks, publisher)
			}
		}
	}

	store, err := OpenStreamStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open stream store: %w", err)
	}
	app.Registry = registry.New(store, cfg.Paths.BaseDir, registry.WithSink(sinks))
	if err := app.Registry.Load(ctx); err != nil {
		return nil, err
	}

	app.Archive, err = archive.New(cfg.Paths.ArchiveDir, archive.WithSink(sinks))
	if err != nil {
		return nil, err
	}

	caps, err := NewCapabilities(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var evidence service.EvidenceStore
	if cfg.Storage != nil {
		es := storage.NewEvidenceStore(cfg.Storage, cfg.MinIO.Bucket)
		if err := es.EnsureBucket(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("continuing without evidence upload")
		} else {
			evidence = es
		}
	}

	app.Supervisor = service.NewSupervisor(ctx, app.Registry, caps, app.Archive, evidence, NewSupervisorOptions(cfg))
	app.Hub.snapshot = Snapshot(ctx, app.Supervisor, app.Archive)
	return app, nil
}
