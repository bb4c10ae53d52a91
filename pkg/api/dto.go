package api

// Request payloads.

// CreateRequirementRequest is the payload for creating a requirement.
type CreateRequirementRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// UpdateRequirementRequest carries a partial update; empty fields are left
// untouched.
type UpdateRequirementRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=draft active in_progress completed"`
}

// InviteRequest adds a participant to a requirement.
type InviteRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// SubmitContentRequest records a piece of collected material. Type may be
// omitted when a file path is given; it is then inferred from the name.
type SubmitContentRequest struct {
	ContentType string `json:"content_type" validate:"omitempty,oneof=text markdown image audio file"`
	Text        string `json:"text"`
	FilePath    string `json:"file_path"`
}

// Response payloads.

// RequirementResponse is the wire form of a requirement.
type RequirementResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatorID   string `json:"creator_id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ParticipantResponse is the wire form of a participation.
type ParticipantResponse struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// ContentResponse is the wire form of a content submission.
type ContentResponse struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type"`
	Text        string `json:"text,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	SubmittedBy string `json:"submitted_by"`
	SubmittedAt string `json:"submitted_at"`
}

// DocumentResponse is the wire form of a stored document version.
type DocumentResponse struct {
	ID            string `json:"id"`
	RequirementID string `json:"requirement_id"`
	Version       int    `json:"version"`
	Content       string `json:"content,omitempty"`
	GeneratedAt   string `json:"generated_at"`
}

// GenerateResponse reports the outcome of a document generation run.
type GenerateResponse struct {
	Version  int    `json:"version"`
	Fallback bool   `json:"fallback"`
	Content  string `json:"content"`
}

// HealthResponse exposes which persistence backend the service resolved.
type HealthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	Detail    string `json:"detail"`
	Connected bool   `json:"connected"`
}
