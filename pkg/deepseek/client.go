package deepseek

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"stream-moderator/constant"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com/v1"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 30 * time.Second
)

var ErrEmptyResponse = errors.New("chat completion returned no choices")

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// APIError carries a non-2xx response verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat completion failed (%d): %s", e.StatusCode, e.Body)
}

// Client classifies transcripts through an OpenAI-compatible chat
// completions endpoint.
type Client struct {
	http *resty.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: client, cfg: cfg}
}

// Prompt asks for an outline and a verdict, and pins the verdict to one of
// the two markers on the last line.
func Prompt(text string) string {
	var b strings.Builder
	b.WriteString("请分析以下课堂录音的转写文本：\n\n")
	b.WriteString(text)
	b.WriteString("\n\n请给出：\n")
	b.WriteString("1. 文本大纲（主要内容与结构）\n")
	b.WriteString("2. 是否包含以下不当言论：\n")
	b.WriteString("   a) 反动言论\n")
	b.WriteString("   b) 违反中国法律的言论\n")
	b.WriteString("   c) 不适合教师在课堂上发表的言论\n\n")
	fmt.Fprintf(&b, "请以结构化方式输出。最后一行必须单独标记：检测到上述任一类不当言论时写 %s，否则写 %s\n",
		constant.FlaggedMarker, constant.NotFlaggedMarker)
	return b.String()
}

func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []message{{Role: "user", Content: Prompt(text)}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	zerolog.Ctx(ctx).Debug().Int("chars", len(out.Choices[0].Message.Content)).Msg("chat completion received")
	return out.Choices[0].Message.Content, nil
}
