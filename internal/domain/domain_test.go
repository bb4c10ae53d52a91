package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusDraft.Valid())
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}

func TestContentSubmissionValidate(t *testing.T) {
	t.Run("TextOnly", func(t *testing.T) {
		c := ContentSubmission{ContentType: ContentTypeText, ContentText: "Users need login"}
		assert.True(t, c.Validate())
	})

	t.Run("FileOnly", func(t *testing.T) {
		c := ContentSubmission{ContentType: ContentTypeImage, FilePath: "uploads/mock.png"}
		assert.True(t, c.Validate())
	})

	t.Run("BothEmpty", func(t *testing.T) {
		c := ContentSubmission{ContentType: ContentTypeText}
		assert.False(t, c.Validate())
	})

	t.Run("UnknownType", func(t *testing.T) {
		c := ContentSubmission{ContentType: "video", ContentText: "x"}
		assert.False(t, c.Validate())
	})
}

func TestInferContentType(t *testing.T) {
	assert.Equal(t, ContentTypeImage, InferContentType("diagram.PNG"))
	assert.Equal(t, ContentTypeAudio, InferContentType("interview.mp3"))
	assert.Equal(t, ContentTypeMarkdown, InferContentType("notes.md"))
	assert.Equal(t, ContentTypeText, InferContentType("raw.txt"))
	assert.Equal(t, ContentTypeFile, InferContentType("spec.pdf"))
	assert.Equal(t, ContentTypeFile, InferContentType("no-extension"))
}
