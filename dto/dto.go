package dto

import (
	"time"

	"stream-moderator/constant"
)

type AddStreamRequest struct {
	ClassroomID string `json:"classroom_id"`
	TeacherName string `json:"teacher_name"`
	URL         string `json:"rtsp_url"`
	IgnoreError bool   `json:"ignore_error"`
}

type ConnectionTest struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AddStreamResponse struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	StreamID       string          `json:"stream_id,omitempty"`
	ConnectionTest *ConnectionTest `json:"connection_test,omitempty"`
}

type ActionResult struct {
	StreamID string `json:"stream_id"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

type BulkResult struct {
	Success bool           `json:"success"`
	Results []ActionResult `json:"results"`
}

type StreamView struct {
	ID          string                `json:"id"`
	Number      int                   `json:"number"`
	ClassroomID string                `json:"classroom_id"`
	TeacherName string                `json:"teacher_name"`
	URL         string                `json:"rtsp_url"`
	Status      constant.StreamStatus `json:"status"`
	LastError   string                `json:"last_error,omitempty"`
}

type ContentResponse struct {
	Content string `json:"content"`
}

// StreamCommand is the body of a message on the control queue.
type StreamCommand struct {
	Action   constant.ControlAction `json:"action"`
	StreamID string                 `json:"streamId,omitempty"`
}

type Event struct {
	Type      constant.EventType    `json:"type"`
	StreamID  string                `json:"stream_id,omitempty"`
	Status    constant.StreamStatus `json:"status,omitempty"`
	LastError string                `json:"last_error,omitempty"`
	Content   string                `json:"content,omitempty"`
	At        time.Time             `json:"at"`
}
