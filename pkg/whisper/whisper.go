package whisper

import (
	"context"
	"fmt"
	"time"
)

const (
	ModeHTTP = "http"
	ModeCLI  = "cli"

	DefaultModel   = "small"
	DefaultBinary  = "whisper"
	DefaultTimeout = 10 * time.Minute
)

type Config struct {
	Mode    string
	BaseURL string
	APIKey  string
	Model   string
	Binary  string
	Timeout time.Duration
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// New builds the transcriber selected by cfg.Mode.
func New(cfg Config) (Transcriber, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Mode {
	case ModeHTTP:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("whisper http mode requires a base url")
		}
		return NewHTTPTranscriber(cfg), nil
	case ModeCLI, "":
		if cfg.Binary == "" {
			cfg.Binary = DefaultBinary
		}
		return NewCLITranscriber(cfg), nil
	default:
		return nil, fmt.Errorf("unknown whisper mode %q", cfg.Mode)
	}
}
