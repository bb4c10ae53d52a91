// Package domain contains the core data structures for the application,
// independent of the database or API layers.
package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Status enumerates the lifecycle states of a requirement.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known requirement status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Role enumerates participation roles on a requirement.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// ContentType enumerates the kinds of submitted content.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeImage    ContentType = "image"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeFile     ContentType = "file"
)

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeText, ContentTypeMarkdown, ContentTypeImage, ContentTypeAudio, ContentTypeFile:
		return true
	}
	return false
}

// IsTextual reports whether the content is carried inline as text.
func (c ContentType) IsTextual() bool {
	return c == ContentTypeText || c == ContentTypeMarkdown
}

// Requirement represents a requirement-collection task owned by its creator.
type Requirement struct {
	ID          string
	Title       string
	Description string
	CreatorID   string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Participation links a user to a requirement with a role. The (UserID,
// RequirementID) pair is the composite key; a user appears at most once per
// requirement.
type Participation struct {
	UserID        string
	RequirementID string
	Role          Role
	JoinedAt      time.Time
}

// ContentSubmission is one piece of collected requirement material. At least
// one of ContentText and FilePath is non-empty.
type ContentSubmission struct {
	ID            string
	RequirementID string
	ContentType   ContentType
	ContentText   string
	FilePath      string
	SubmittedBy   string
	SubmittedAt   time.Time
}

// Validate checks the content invariant.
func (c ContentSubmission) Validate() bool {
	if !c.ContentType.Valid() {
		return false
	}
	return c.ContentText != "" || c.FilePath != ""
}

// DocumentVersion is an immutable, per-requirement numbered snapshot of a
// generated specification document. Versions start at 1 and only ever grow;
// an update is version N+1, never a rewrite of version N.
type DocumentVersion struct {
	ID            string
	RequirementID string
	Version       int
	Content       string
	GeneratedAt   time.Time

	// ArtifactPath is a legacy field kept for records written by the retired
	// PDF export. New versions leave it empty.
	ArtifactPath string
}

// imageExtensions and audioExtensions drive content-type inference for
// uploaded files whose kind was not declared by the caller.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true, ".svg": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".flac": true, ".aac": true,
}

// InferContentType guesses a content type from an uploaded file name.
func InferContentType(fileName string) ContentType {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case imageExtensions[ext]:
		return ContentTypeImage
	case audioExtensions[ext]:
		return ContentTypeAudio
	case ext == ".md" || ext == ".markdown":
		return ContentTypeMarkdown
	case ext == ".txt":
		return ContentTypeText
	default:
		return ContentTypeFile
	}
}
