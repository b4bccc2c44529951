package entities

import (
	"path/filepath"
	"strings"
	"time"
)

// Segment is one capture artifact produced by a recording session.
type Segment struct {
	StreamID  string
	Index     int
	StartedAt time.Time
	Duration  time.Duration
	Path      string
	Size      int64
}

// BaseName is the file name without extension, shared by every artifact
// derived from the segment.
func (s Segment) BaseName() string {
	name := filepath.Base(s.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
