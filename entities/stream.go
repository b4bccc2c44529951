package entities

import (
	"path/filepath"

	"stream-moderator/constant"
)

type StreamConfig struct {
	StreamID      string `json:"stream_id"`
	ClassroomID   string `json:"classroom_id"`
	TeacherName   string `json:"teacher_name"`
	URL           string `json:"rtsp_url"`
	RootDir       string `json:"-"`
	VideosDir     string `json:"-"`
	AudioDir      string `json:"-"`
	TranscriptDir string `json:"-"`
	AnalysisDir   string `json:"-"`
	Number        int    `json:"-"`
}

// Dirs lists every directory a stream writes into.
func (c StreamConfig) Dirs() []string {
	return []string{c.VideosDir, c.AudioDir, c.TranscriptDir, c.AnalysisDir}
}

// NewStreamConfig lays out the per-stream directories under baseDir.
func NewStreamConfig(baseDir, streamID, classroomID, teacherName, url string) StreamConfig {
	root := filepath.Join(baseDir, streamID)
	return StreamConfig{
		StreamID:      streamID,
		ClassroomID:   classroomID,
		TeacherName:   teacherName,
		URL:           url,
		RootDir:       root,
		VideosDir:     filepath.Join(root, "videos"),
		AudioDir:      filepath.Join(root, "audio"),
		TranscriptDir: filepath.Join(root, "transcripts"),
		AnalysisDir:   filepath.Join(root, "analysis"),
	}
}

type StreamState struct {
	Status    constant.StreamStatus `json:"status"`
	LastError string                `json:"last_error"`
}

// Stream is a point-in-time snapshot of one registered stream.
type Stream struct {
	StreamConfig
	StreamState
}

// StreamRow is the persisted form of a stream. Live status is never trusted
// across restarts, so only the last error is kept.
type StreamRow struct {
	StreamID    string `json:"-" gorm:"type:varchar(255);primaryKey"`
	ClassroomID string `json:"classroom_id" gorm:"type:varchar(255);not null"`
	TeacherName string `json:"teacher_name" gorm:"type:varchar(255);not null"`
	URL         string `json:"rtsp_url" gorm:"column:rtsp_url;type:text;not null"`
	Status      string `json:"status" gorm:"type:varchar(20);not null"`
	LastError   string `json:"last_error" gorm:"type:text"`
	Position    int    `json:"-" gorm:"not null"`
}

func (StreamRow) TableName() string {
	return "streams"
}
