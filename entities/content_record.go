package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ExcerptLength   = 200
	RecordSeparator = "--------------------------------------------------------------------------------"
)

type ContentRecord struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	ClassroomID string    `json:"classroom_id"`
	TeacherName string    `json:"teacher_name"`
	ContentType string    `json:"content_type"`
	Excerpt     string    `json:"excerpt"`
	Analysis    string    `json:"analysis"`
}

func NewContentRecord(at time.Time, classroomID, teacherName, contentType, originalText, analysis string) ContentRecord {
	return ContentRecord{
		ID:          uuid.New(),
		CreatedAt:   at,
		ClassroomID: classroomID,
		TeacherName: teacherName,
		ContentType: contentType,
		Excerpt:     Excerpt(originalText, ExcerptLength),
		Analysis:    analysis,
	}
}

// Excerpt returns the first n characters of text. Counting runes keeps
// multi-byte transcripts from being cut mid-character.
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// Format renders the record as one archive block.
func (r ContentRecord) Format() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] [%s] [%s] [%s]\n",
		r.CreatedAt.Format("2006-01-02 15:04:05"), r.ClassroomID, r.TeacherName, r.ContentType))
	sb.WriteString(fmt.Sprintf("Original: %s...\n", r.Excerpt))
	sb.WriteString(fmt.Sprintf("Analysis: %s\n", r.Analysis))
	sb.WriteString(RecordSeparator + "\n\n")
	return sb.String()
}
