package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stream-moderator/config"
	"stream-moderator/dto"
)

func runCmd(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := Root(&config.Config{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append(args, "--server", srv.URL))
	err := root.Execute()
	return out.String(), err
}

func TestStreamsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/streams", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]dto.StreamView{
			{ID: "A1_Zhang", Number: 1, URL: "rtsp://cam/1", Status: "running"},
			{ID: "B2_Li", Number: 2, URL: "rtsp://cam/2", Status: "error", LastError: "capture failed"},
		})
	}))
	defer srv.Close()

	out, err := runCmd(t, srv, "streams", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "A1_Zhang")
	assert.Contains(t, out, "capture failed")
}

func TestStreamsAdd(t *testing.T) {
	var got dto.AddStreamRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.AddStreamResponse{Success: true, Message: "stream added", StreamID: "A1_Zhang"})
	}))
	defer srv.Close()

	out, err := runCmd(t, srv, "streams", "add", "A1", "Zhang", "rtsp://cam/1", "--ignore-error")

	require.NoError(t, err)
	assert.Contains(t, out, "A1_Zhang")
	assert.Equal(t, dto.AddStreamRequest{ClassroomID: "A1", TeacherName: "Zhang", URL: "rtsp://cam/1", IgnoreError: true}, got)
}

func TestStreamsStartFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/streams/missing/start", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(dto.ActionResult{StreamID: "missing", Message: "stream not found: missing"})
	}))
	defer srv.Close()

	out, err := runCmd(t, srv, "streams", "start", "missing")

	assert.Error(t, err)
	assert.Contains(t, out, "stream not found")
}
