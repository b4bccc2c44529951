package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App      App
	Server   Server
	Paths    Paths
	Capture  Capture
	Pipeline Pipeline
	FFmpeg   FFmpeg
	Whisper  Whisper
	DeepSeek DeepSeek
	MinIO    MinIO

	// Optional infrastructure, nil when not configured.
	DB      *sql.DB
	Queue   *RabbitMQ
	Storage *minio.Client
}

type App struct {
	Environment string
}

type Server struct {
	HttpPort          string
	ReconcileInterval time.Duration
	ShutdownTimeout   time.Duration
}

type Paths struct {
	BaseDir     string
	ArchiveDir  string
	StreamsFile string
}

type Capture struct {
	SegmentDuration time.Duration
	Grace           time.Duration
	MinSegmentBytes int64
	MaxRetries      int
	RetryDelay      time.Duration
	ProbeTimeout    time.Duration
}

type Pipeline struct {
	Workers            int
	QueueSize          int
	Language           string
	MinAudioBytes      int64
	MinTranscriptChars int
}

type FFmpeg struct {
	Binary         string
	ExtractTimeout time.Duration
}

type Whisper struct {
	Mode    string
	BaseURL string
	APIKey  string
	Model   string
	Binary  string
	Timeout time.Duration
}

type DeepSeek struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type MinIO struct {
	URL    string
	Bucket string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "develop")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.reconcile_interval", "10s")
	v.SetDefault("server.shutdown_timeout", "6m")

	v.SetDefault("paths.base_dir", "captured_videos")
	v.SetDefault("paths.archive_dir", "inappropriate_content")
	v.SetDefault("paths.streams_file", "rtsp_config.json")

	v.SetDefault("capture.segment_duration", "300s")
	v.SetDefault("capture.grace", "30s")
	v.SetDefault("capture.min_segment_bytes", 10000)
	v.SetDefault("capture.max_retries", 3)
	v.SetDefault("capture.retry_delay", "5s")
	v.SetDefault("capture.probe_timeout", "15s")

	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.queue_size", 64)
	v.SetDefault("pipeline.language", "zh")
	v.SetDefault("pipeline.min_audio_bytes", 1000)
	v.SetDefault("pipeline.min_transcript_chars", 10)

	v.SetDefault("ffmpeg.binary", "ffmpeg")
	v.SetDefault("ffmpeg.extract_timeout", "60s")

	v.SetDefault("whisper.mode", "cli")
	v.SetDefault("whisper.model", "small")
	v.SetDefault("whisper.binary", "whisper")
	v.SetDefault("whisper.timeout", "10m")

	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("deepseek.temperature", 0.7)
	v.SetDefault("deepseek.max_tokens", 2000)
	v.SetDefault("deepseek.timeout", "30s")

	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_kind", "direct")
	v.SetDefault("minio.bucket", "moderation-evidence")
}

// Load reads config.yaml from path. Every key has a default and can be
// overridden from the environment with the SM_ prefix, e.g.
// SM_DEEPSEEK_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		App: App{
			Environment: v.GetString("app.environment"),
		},
		Server: Server{
			HttpPort:          v.GetString("server.port"),
			ReconcileInterval: v.GetDuration("server.reconcile_interval"),
			ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),
		},
		Paths: Paths{
			BaseDir:     v.GetString("paths.base_dir"),
			ArchiveDir:  v.GetString("paths.archive_dir"),
			StreamsFile: v.GetString("paths.streams_file"),
		},
		Capture: Capture{
			SegmentDuration: v.GetDuration("capture.segment_duration"),
			Grace:           v.GetDuration("capture.grace"),
			MinSegmentBytes: v.GetInt64("capture.min_segment_bytes"),
			MaxRetries:      v.GetInt("capture.max_retries"),
			RetryDelay:      v.GetDuration("capture.retry_delay"),
			ProbeTimeout:    v.GetDuration("capture.probe_timeout"),
		},
		Pipeline: Pipeline{
			Workers:            v.GetInt("pipeline.workers"),
			QueueSize:          v.GetInt("pipeline.queue_size"),
			Language:           v.GetString("pipeline.language"),
			MinAudioBytes:      v.GetInt64("pipeline.min_audio_bytes"),
			MinTranscriptChars: v.GetInt("pipeline.min_transcript_chars"),
		},
		FFmpeg: FFmpeg{
			Binary:         v.GetString("ffmpeg.binary"),
			ExtractTimeout: v.GetDuration("ffmpeg.extract_timeout"),
		},
		Whisper: Whisper{
			Mode:    v.GetString("whisper.mode"),
			BaseURL: v.GetString("whisper.base_url"),
			APIKey:  v.GetString("whisper.api_key"),
			Model:   v.GetString("whisper.model"),
			Binary:  v.GetString("whisper.binary"),
			Timeout: v.GetDuration("whisper.timeout"),
		},
		DeepSeek: DeepSeek{
			BaseURL:     v.GetString("deepseek.base_url"),
			APIKey:      v.GetString("deepseek.api_key"),
			Model:       v.GetString("deepseek.model"),
			Temperature: v.GetFloat64("deepseek.temperature"),
			MaxTokens:   v.GetInt("deepseek.max_tokens"),
			Timeout:     v.GetDuration("deepseek.timeout"),
		},
		MinIO: MinIO{
			URL:    v.GetString("minio.url"),
			Bucket: v.GetString("minio.bucket"),
		},
	}

	if dsn := v.GetString("postgresql_host"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		cfg.DB = db
	}

	if host := v.GetString("rabbitmq_host"); host != "" {
		cfg.Queue = &RabbitMQ{
			Host:           host,
			Port:           v.GetInt("rabbitmq_port"),
			User:           v.GetString("rabbitmq_user"),
			Pass:           v.GetString("rabbitmq_pass"),
			Kind:           v.GetString("rabbitmq_kind"),
			ControlWorkers: v.GetInt("rabbitmq_control_workers"),
		}
	}

	if cfg.MinIO.URL != "" {
		minioClient, err := minio.New(cfg.MinIO.URL, &minio.Options{
			Creds:  credentials.NewStaticV4(v.GetString("minio.access_id"), v.GetString("minio.secret_access_key"), ""),
			Secure: v.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, err
		}
		cfg.Storage = minioClient
	}

	return cfg, nil
}
