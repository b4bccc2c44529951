package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CLITranscriber runs the whisper command line tool and reads back its
// plain-text output.
type CLITranscriber struct {
	binary  string
	model   string
	timeout time.Duration
}

func NewCLITranscriber(cfg Config) *CLITranscriber {
	return &CLITranscriber{binary: cfg.Binary, model: cfg.Model, timeout: cfg.Timeout}
}

func CLIArgs(audioPath, model, language, outputDir string) []string {
	return []string{
		audioPath,
		"--model", model,
		"--language", language,
		"--output_format", "txt",
		"--output_dir", outputDir,
		"--fp16", "False",
		"--verbose", "False",
	}
}

func (t *CLITranscriber) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	outDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return "", fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := CLIArgs(audioPath, t.model, language, outDir)
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.WaitDelay = time.Second
	zerolog.Ctx(ctx).Debug().Str("command", t.binary+" "+strings.Join(args, " ")).Msg("executing whisper")

	if output, err := cmd.CombinedOutput(); err != nil {
		tail := strings.TrimSpace(string(output))
		if len(tail) > 200 {
			tail = tail[len(tail)-200:]
		}
		return "", fmt.Errorf("whisper execution failed: %w: %s", err, tail)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	text, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}
