package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrNotInstalled = errors.New("ffmpeg executable not found")

const (
	DefaultBinary         = "ffmpeg"
	DefaultExtractTimeout = 60 * time.Second
)

// Runner drives the ffmpeg executable for capture, probing and audio
// extraction.
type Runner struct {
	binary         string
	extractTimeout time.Duration
}

func New(binary string, extractTimeout time.Duration) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	if extractTimeout <= 0 {
		extractTimeout = DefaultExtractTimeout
	}
	return &Runner{binary: binary, extractTimeout: extractTimeout}
}

// Check resolves the executable on PATH.
func (r *Runner) Check() (string, error) {
	path, err := exec.LookPath(r.binary)
	if err != nil {
		return "", errors.Join(ErrNotInstalled, err)
	}
	return path, nil
}

func CaptureArgs(sourceURL, target string, duration time.Duration) []string {
	return []string{
		"-i", sourceURL,
		"-t", seconds(duration),
		"-c", "copy",
		"-y",
		target,
	}
}

func ProbeArgs(sourceURL string) []string {
	return []string{
		"-i", sourceURL,
		"-t", "2",
		"-f", "null",
		"-",
	}
}

// ExtractArgs produces 16 kHz mono 16-bit PCM, the input speech models expect.
func ExtractArgs(videoPath, audioPath string) []string {
	return []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		audioPath,
	}
}

// ProbeSucceeded reports whether ffmpeg got far enough to see the stream.
func ProbeSucceeded(output string) bool {
	return strings.Contains(output, "Stream mapping:") || strings.Contains(output, "Duration:")
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func (r *Runner) run(ctx context.Context, timeout time.Duration, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.WaitDelay = time.Second
	zerolog.Ctx(ctx).Debug().Str("command", r.binary+" "+strings.Join(args, " ")).Msg("executing ffmpeg")

	output, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return string(output), fmt.Errorf("ffmpeg timed out after %s", timeout)
	}
	if err != nil {
		return string(output), fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return string(output), nil
}

func (r *Runner) Capture(ctx context.Context, sourceURL, targetPath string, duration, timeout time.Duration) (string, error) {
	return r.run(ctx, timeout, CaptureArgs(sourceURL, targetPath, duration))
}

func (r *Runner) Probe(ctx context.Context, sourceURL string, timeout time.Duration) (bool, string) {
	output, err := r.run(ctx, timeout, ProbeArgs(sourceURL))
	if ProbeSucceeded(output) {
		zerolog.Ctx(ctx).Info().Str("url", sourceURL).Msg("stream connection test succeeded")
		return true, "connection ok"
	}

	detail := head(strings.TrimSpace(output), 100)
	if err != nil && detail == "" {
		detail = err.Error()
	}
	zerolog.Ctx(ctx).Warn().Err(err).Str("url", sourceURL).Msg("stream connection test failed")
	return false, "connection failed: " + detail
}

func (r *Runner) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	output, err := r.run(ctx, r.extractTimeout, ExtractArgs(videoPath, audioPath))
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(strings.TrimSpace(output), 200))
	}
	return nil
}

// head and tail cut by rune so multi-byte paths in the output stay valid.
func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
