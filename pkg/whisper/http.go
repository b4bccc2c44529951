package whisper

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// HTTPTranscriber posts audio to an OpenAI-compatible
// /audio/transcriptions endpoint.
type HTTPTranscriber struct {
	http  *resty.Client
	model string
}

func NewHTTPTranscriber(cfg Config) *HTTPTranscriber {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPTranscriber{http: client, model: cfg.Model}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	var out transcriptionResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetFile("file", audioPath).
		SetFormData(map[string]string{
			"model":           t.model,
			"language":        language,
			"response_format": "json",
		}).
		SetResult(&out).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("transcription failed (%d): %s", resp.StatusCode(), resp.String())
	}

	zerolog.Ctx(ctx).Debug().Str("audio", audioPath).Int("chars", len(out.Text)).Msg("transcription received")
	return strings.TrimSpace(out.Text), nil
}
