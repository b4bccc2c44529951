package whisper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "20261016_093000_001.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o644))
	return path
}

func TestNewSelectsMode(t *testing.T) {
	tr, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &CLITranscriber{}, tr)

	tr, err = New(Config{Mode: ModeHTTP, BaseURL: "http://localhost:9000/v1"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPTranscriber{}, tr)

	_, err = New(Config{Mode: ModeHTTP})
	assert.Error(t, err)
	_, err = New(Config{Mode: "grpc"})
	assert.Error(t, err)
}

func TestHTTPTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, DefaultModel, r.FormValue("model"))
		assert.Equal(t, "zh", r.FormValue("language"))
		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			body, _ := io.ReadAll(file)
			assert.Equal(t, "RIFF....WAVE", string(body))
			assert.Equal(t, "20261016_093000_001.wav", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" 同学们好，今天我们学习分数。 "}`))
	}))
	defer srv.Close()

	tr, err := New(Config{Mode: ModeHTTP, BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), writeAudio(t), "zh")
	require.NoError(t, err)
	assert.Equal(t, "同学们好，今天我们学习分数。", text)
}

func TestHTTPTranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, _ := New(Config{Mode: ModeHTTP, BaseURL: srv.URL})
	_, err := tr.Transcribe(context.Background(), writeAudio(t), "zh")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCLITranscribe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	// writes "<output_dir>/<audio base>.txt" like the real tool
	script := `#!/bin/sh
audio="$1"
while [ $# -gt 0 ]; do
  if [ "$1" = "--output_dir" ]; then out="$2"; fi
  shift
done
base=$(basename "$audio" .wav)
printf '  课堂转写文本  ' > "$out/$base.txt"
`
	bin := filepath.Join(t.TempDir(), "whisper")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	tr, err := New(Config{Mode: ModeCLI, Binary: bin})
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), writeAudio(t), "zh")
	require.NoError(t, err)
	assert.Equal(t, "课堂转写文本", text)
}

func TestCLITranscribeFailure(t *testing.T) {
	tr, _ := New(Config{Mode: ModeCLI, Binary: "definitely-not-whisper"})
	_, err := tr.Transcribe(context.Background(), writeAudio(t), "zh")
	assert.Error(t, err)
}

func TestCLIArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"a.wav", "--model", "small", "--language", "zh", "--output_format", "txt", "--output_dir", "/tmp/o", "--fp16", "False", "--verbose", "False"},
		CLIArgs("a.wav", "small", "zh", "/tmp/o"))
}
