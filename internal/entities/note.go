package entities

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Note is study material attached to a course by code. Keywords and Videos are
// stored as serialized JSON lists.
type Note struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CourseCode string         `gorm:"column:course_code;size:64;not null;default:'';index:idx_notes_course" json:"course_code"`
	Title      string         `gorm:"column:title;size:190;not null" json:"title"`
	Subject    string         `gorm:"column:subject;size:190;not null;default:''" json:"subject"`
	Content    string         `gorm:"column:content;type:text;not null;default:''" json:"content"`
	Keywords   datatypes.JSON `gorm:"column:keywords;type:text" json:"keywords"`
	Videos     datatypes.JSON `gorm:"column:videos;type:text" json:"videos"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// EntityID returns the note identifier.
func (n Note) EntityID() int64 {
	return n.ID
}

// Video is an embedded video reference on a note.
type Video struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// KeywordList decodes the keyword column. Malformed data yields no keywords.
func (n Note) KeywordList() []string {
	var keywords []string
	if len(n.Keywords) == 0 {
		return nil
	}
	if err := json.Unmarshal(n.Keywords, &keywords); err != nil {
		return nil
	}
	return keywords
}

// VideoList decodes the video column. Malformed data yields no videos.
func (n Note) VideoList() []Video {
	var videos []Video
	if len(n.Videos) == 0 {
		return nil
	}
	if err := json.Unmarshal(n.Videos, &videos); err != nil {
		return nil
	}
	return videos
}

// EncodeKeywords serializes keywords, trimming blanks.
func EncodeKeywords(keywords []string) datatypes.JSON {
	cleaned := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	encoded, _ := json.Marshal(cleaned)
	return datatypes.JSON(encoded)
}

// EncodeVideos serializes a video list.
func EncodeVideos(videos []Video) datatypes.JSON {
	if videos == nil {
		videos = []Video{}
	}
	encoded, _ := json.Marshal(videos)
	return datatypes.JSON(encoded)
}

// NotePatch is a single-column change to a Note.
type NotePatch interface {
	Patch[Note]
	notePatch()
}

type SetNoteTitle struct{ Title string }

func (SetNoteTitle) Column() string { return "title" }
func (p SetNoteTitle) Value() string { return p.Title }
func (p SetNoteTitle) Apply(note Note) Note {
	note.Title = p.Title
	return note
}
func (SetNoteTitle) notePatch() {}

type SetNoteSubject struct{ Subject string }

func (SetNoteSubject) Column() string { return "subject" }
func (p SetNoteSubject) Value() string { return p.Subject }
func (p SetNoteSubject) Apply(note Note) Note {
	note.Subject = p.Subject
	return note
}
func (SetNoteSubject) notePatch() {}

type SetNoteContent struct{ Content string }

func (SetNoteContent) Column() string { return "content" }
func (p SetNoteContent) Value() string { return p.Content }
func (p SetNoteContent) Apply(note Note) Note {
	note.Content = p.Content
	return note
}
func (SetNoteContent) notePatch() {}

type SetNoteKeywords struct{ Keywords []string }

func (SetNoteKeywords) Column() string { return "keywords" }
func (p SetNoteKeywords) Value() string { return string(EncodeKeywords(p.Keywords)) }
func (p SetNoteKeywords) Apply(note Note) Note {
	note.Keywords = EncodeKeywords(p.Keywords)
	return note
}
func (SetNoteKeywords) notePatch() {}

// SetNoteVideos replaces the whole video list.
type SetNoteVideos struct{ Videos []Video }

func (SetNoteVideos) Column() string { return "videos" }
func (p SetNoteVideos) Value() string { return string(EncodeVideos(p.Videos)) }
func (p SetNoteVideos) Apply(note Note) Note {
	note.Videos = EncodeVideos(p.Videos)
	return note
}
func (SetNoteVideos) notePatch() {}
