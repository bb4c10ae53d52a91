// Package requirement provides business logic for requirement-collection
// tasks: lifecycle, participation, content submission and document
// generation, all expressed through the uniform storage adapter.
package requirement

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reqspec-backend/internal/domain"
	"reqspec-backend/internal/service/document"
	"reqspec-backend/internal/storage"
	appErrors "reqspec-backend/pkg/errors"
)

const (
	requirementsTable = "requirements"
	participantsTable = "user_requirements"
	contentsTable     = "requirement_contents"
)

// GenerationResult is the outcome of a document generation request.
type GenerationResult struct {
	Content  string
	Version  int
	Fallback bool
}

// Service defines the interface for requirement-related business operations.
type Service interface {
	// Create stores a new requirement and its owner participation atomically.
	Create(ctx context.Context, userID, title, description string) (*domain.Requirement, error)

	// Get retrieves a requirement the user participates in.
	Get(ctx context.Context, userID, requirementID string) (*domain.Requirement, error)

	// ListForUser retrieves every requirement the user participates in.
	ListForUser(ctx context.Context, userID string) ([]domain.Requirement, error)

	// Update modifies title, description or status; creator only.
	Update(ctx context.Context, userID, requirementID, title, description string, status domain.Status) (*domain.Requirement, error)

	// Delete removes a requirement and everything hanging off it; creator only.
	Delete(ctx context.Context, userID, requirementID string) error

	// Invite adds a member participation; owner only, duplicates rejected.
	Invite(ctx context.Context, ownerID, requirementID, inviteeID string) (*domain.Participation, error)

	// RemoveParticipant drops a member participation; owner only, and the
	// owner participation itself cannot be removed.
	RemoveParticipant(ctx context.Context, ownerID, requirementID, userID string) error

	// ListParticipants returns the participations on a requirement.
	ListParticipants(ctx context.Context, userID, requirementID string) ([]domain.Participation, error)

	// SubmitContent records a piece of collected material; participants only.
	SubmitContent(ctx context.Context, userID, requirementID string, contentType domain.ContentType, text, filePath string) (*domain.ContentSubmission, error)

	// ListContents returns the submitted content for a requirement.
	ListContents(ctx context.Context, userID, requirementID string) ([]domain.ContentSubmission, error)

	// DeleteContent removes one submission; submitter only.
	DeleteContent(ctx context.Context, userID, requirementID, contentID string) error

	// GenerateDocument runs the generation pipeline and stores the next version.
	GenerateDocument(ctx context.Context, userID, requirementID string) (*GenerationResult, error)

	// ListDocuments returns all document versions, newest first.
	ListDocuments(ctx context.Context, userID, requirementID string) ([]domain.DocumentVersion, error)

	// GetDocument returns one document version.
	GetDocument(ctx context.Context, userID, requirementID string, version int) (*domain.DocumentVersion, error)

	// DeleteDocument removes one document version; creator only.
	DeleteDocument(ctx context.Context, userID, requirementID string, version int) error

	// ExportMarkdown returns a document's text; version <= 0 means latest.
	ExportMarkdown(ctx context.Context, userID, requirementID string, version int) (string, error)
}

// service implements the Service interface with concrete business logic.
type service struct {
	adapter   *storage.Adapter
	generator *document.Generator
	versions  *document.VersionStore
	logger    *zap.Logger
}

// NewService creates a new requirement service over the resolved adapter.
func NewService(adapter *storage.Adapter, generator *document.Generator, versions *document.VersionStore, logger *zap.Logger) Service {
	return &service{
		adapter:   adapter,
		generator: generator,
		versions:  versions,
		logger:    logger,
	}
}

// Create stores the requirement and its owner participation atomically: a
// single transaction on the SQL paths, ordered writes with compensation on
// the REST path.
func (s *service) Create(ctx context.Context, userID, title, description string) (*domain.Requirement, error) {
	if title == "" {
		return nil, appErrors.NewValidation("title cannot be empty")
	}
	if userID == "" {
		return nil, appErrors.NewValidation("user id cannot be empty")
	}

	now := time.Now().UTC()
	req := domain.Requirement{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		CreatorID:   userID,
		Status:      domain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	reqRec := requirementToRecord(req)
	partRec := storage.Record{
		"user_id":        userID,
		"requirement_id": req.ID,
		"role":           string(domain.RoleOwner),
		"joined_at":      now.Format(time.RFC3339),
	}

	if s.adapter.Method() == storage.MethodREST {
		if _, err := s.adapter.Insert(ctx, requirementsTable, reqRec); err != nil {
			return nil, err
		}
		if _, err := s.adapter.Insert(ctx, participantsTable, partRec); err != nil {
			// Compensate so no requirement exists without an owner.
			if _, cErr := s.adapter.Delete(ctx, requirementsTable, storage.Record{"id": req.ID}); cErr != nil {
				s.logger.Warn("failed to roll back orphaned requirement",
					zap.String("requirement_id", req.ID), zap.Error(cErr))
			}
			return nil, err
		}
	} else {
		err := s.adapter.InTransaction(ctx, func(tx *sql.Tx) error {
			ins := s.adapter.Rebind(
				"INSERT INTO requirements (id, title, description, creator_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
			if _, err := tx.ExecContext(ctx, ins, req.ID, req.Title, req.Description,
				req.CreatorID, string(req.Status), reqRec["created_at"], reqRec["updated_at"]); err != nil {
				return err
			}

			insPart := s.adapter.Rebind(
				"INSERT INTO user_requirements (user_id, requirement_id, role, joined_at) VALUES (?, ?, ?, ?)")
			_, err := tx.ExecContext(ctx, insPart, userID, req.ID, string(domain.RoleOwner), partRec["joined_at"])
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("requirement created",
		zap.String("requirement_id", req.ID), zap.String("creator_id", userID))
	return &req, nil
}

func (s *service) Get(ctx context.Context, userID, requirementID string) (*domain.Requirement, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return nil, err
	}
	return s.getRequirement(ctx, requirementID)
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]domain.Requirement, error) {
	parts, err := s.adapter.Select(ctx, participantsTable,
		storage.Record{"user_id": userID}, nil, 0)
	if err != nil {
		return nil, err
	}

	var reqs []domain.Requirement
	for _, p := range parts {
		req, err := s.getRequirement(ctx, p.String("requirement_id"))
		if err != nil {
			if appErrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, nil
}

// Update is creator-only. updated_at is bumped on every successful change,
// keeping updated_at >= created_at.
func (s *service) Update(ctx context.Context, userID, requirementID, title, description string, status domain.Status) (*domain.Requirement, error) {
	req, err := s.getRequirement(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	if req.CreatorID != userID {
		return nil, appErrors.NewUnauthorized("only the creator can modify a requirement")
	}

	patch := storage.Record{}
	if title != "" {
		patch["title"] = title
		req.Title = title
	}
	if description != "" {
		patch["description"] = description
		req.Description = description
	}
	if status != "" {
		if !status.Valid() {
			return nil, appErrors.NewValidation("unknown requirement status")
		}
		patch["status"] = string(status)
		req.Status = status
	}
	if len(patch) == 0 {
		return req, nil
	}

	req.UpdatedAt = time.Now().UTC()
	patch["updated_at"] = req.UpdatedAt.Format(time.RFC3339)

	if _, err := s.adapter.Update(ctx, requirementsTable,
		storage.Record{"id": requirementID}, patch); err != nil {
		return nil, err
	}
	return req, nil
}

// Delete removes the requirement and cascades over its contents,
// participations and document versions.
func (s *service) Delete(ctx context.Context, userID, requirementID string) error {
	req, err := s.getRequirement(ctx, requirementID)
	if err != nil {
		return err
	}
	if req.CreatorID != userID {
		return appErrors.NewUnauthorized("only the creator can delete a requirement")
	}

	byRequirement := storage.Record{"requirement_id": requirementID}
	for _, table := range []string{contentsTable, participantsTable, "requirement_documents"} {
		if _, err := s.adapter.Delete(ctx, table, byRequirement); err != nil {
			return err
		}
	}
	_, err = s.adapter.Delete(ctx, requirementsTable, storage.Record{"id": requirementID})
	return err
}

// Invite is owner-only. The composite participation key rejects duplicate
// invites at the storage layer.
func (s *service) Invite(ctx context.Context, ownerID, requirementID, inviteeID string) (*domain.Participation, error) {
	if inviteeID == "" {
		return nil, appErrors.NewValidation("invitee id cannot be empty")
	}

	part, err := s.participation(ctx, ownerID, requirementID)
	if err != nil {
		return nil, err
	}
	if part.Role != domain.RoleOwner {
		return nil, appErrors.NewUnauthorized("only the owner can invite participants")
	}

	invite := domain.Participation{
		UserID:        inviteeID,
		RequirementID: requirementID,
		Role:          domain.RoleMember,
		JoinedAt:      time.Now().UTC(),
	}

	_, err = s.adapter.Insert(ctx, participantsTable, storage.Record{
		"user_id":        invite.UserID,
		"requirement_id": invite.RequirementID,
		"role":           string(invite.Role),
		"joined_at":      invite.JoinedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// RemoveParticipant is owner-only. The owner participation stays for the
// requirement's lifetime; every requirement keeps exactly one owner.
func (s *service) RemoveParticipant(ctx context.Context, ownerID, requirementID, userID string) error {
	part, err := s.participation(ctx, ownerID, requirementID)
	if err != nil {
		return err
	}
	if part.Role != domain.RoleOwner {
		return appErrors.NewUnauthorized("only the owner can remove participants")
	}

	rows, err := s.adapter.Select(ctx, participantsTable,
		storage.Record{"user_id": userID, "requirement_id": requirementID}, nil, 1)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return appErrors.NewNotFound("participant not found")
	}
	if domain.Role(rows[0].String("role")) == domain.RoleOwner {
		return appErrors.NewValidation("the owner cannot be removed from a requirement")
	}

	_, err = s.adapter.Delete(ctx, participantsTable,
		storage.Record{"user_id": userID, "requirement_id": requirementID})
	return err
}

func (s *service) ListParticipants(ctx context.Context, userID, requirementID string) ([]domain.Participation, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return nil, err
	}

	rows, err := s.adapter.Select(ctx, participantsTable,
		storage.Record{"requirement_id": requirementID}, nil, 0)
	if err != nil {
		return nil, err
	}

	parts := make([]domain.Participation, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, participationFromRecord(r))
	}
	return parts, nil
}

// SubmitContent records collected material. When no type is declared it is
// inferred from the uploaded file's name.
func (s *service) SubmitContent(ctx context.Context, userID, requirementID string, contentType domain.ContentType, text, filePath string) (*domain.ContentSubmission, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return nil, err
	}

	if contentType == "" && filePath != "" {
		contentType = domain.InferContentType(filePath)
	}

	sub := domain.ContentSubmission{
		ID:            uuid.New().String(),
		RequirementID: requirementID,
		ContentType:   contentType,
		SubmittedBy:   userID,
		SubmittedAt:   time.Now().UTC(),
		FilePath:      filePath,
	}
	if contentType.IsTextual() {
		sub.ContentText = text
	}

	if !sub.Validate() {
		return nil, appErrors.NewValidation("content must carry text or an uploaded file of a known type")
	}

	_, err := s.adapter.Insert(ctx, contentsTable, storage.Record{
		"id":             sub.ID,
		"requirement_id": sub.RequirementID,
		"content_type":   string(sub.ContentType),
		"content_text":   sub.ContentText,
		"file_path":      sub.FilePath,
		"submitted_by":   sub.SubmittedBy,
		"submitted_at":   sub.SubmittedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *service) ListContents(ctx context.Context, userID, requirementID string) ([]domain.ContentSubmission, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return nil, err
	}
	return s.contents(ctx, requirementID)
}

// DeleteContent is submitter-only.
func (s *service) DeleteContent(ctx context.Context, userID, requirementID, contentID string) error {
	rows, err := s.adapter.Select(ctx, contentsTable,
		storage.Record{"id": contentID, "requirement_id": requirementID}, nil, 1)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return appErrors.NewNotFound("content not found")
	}
	if rows[0].String("submitted_by") != userID {
		return appErrors.NewUnauthorized("only the submitter can delete content")
	}

	_, err = s.adapter.Delete(ctx, contentsTable, storage.Record{"id": contentID})
	return err
}

// GenerateDocument reads the requirement and its contents, runs the
// generator (which degrades to the template rather than failing) and
// appends the result as the next immutable version.
func (s *service) GenerateDocument(ctx context.Context, userID, requirementID string) (*GenerationResult, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return nil, err
	}

	req, err := s.getRequirement(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	contents, err := s.contents(ctx, requirementID)
	if err != nil {
		return nil, err
	}

	doc, fallback := s.generator.Generate(ctx, *req, contents)

	version, err := s.versions.Append(ctx, requirementID, doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("document generated",
		zap.String("requirement_id", requirementID),
		zap.Int("version", version),
		zap.Bool("fallback", fallback))

	return &GenerationResult{Content: doc, Version: version, Fallback: fallback}, nil
}

func (s *service) ListDocuments(ctx context.Context, userID, requirementID string) ([]domain.DocumentVersion, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return nil, err
	}
	return s.versions.List(ctx, requirementID)
}

func (s *service) GetDocument(ctx context.Context, userID, requirementID string, version int) (*domain.DocumentVersion, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return nil, err
	}
	return s.versions.Get(ctx, requirementID, version)
}

func (s *service) DeleteDocument(ctx context.Context, userID, requirementID string, version int) error {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return err
	}
	return s.versions.Delete(ctx, requirementID, version, userID)
}

func (s *service) ExportMarkdown(ctx context.Context, userID, requirementID string, version int) (string, error) {
	if _, err := s.participation(ctx, userID, requirementID); err != nil {
		return "", err
	}

	var (
		doc *domain.DocumentVersion
		err error
	)
	if version > 0 {
		doc, err = s.versions.Get(ctx, requirementID, version)
	} else {
		doc, err = s.versions.Latest(ctx, requirementID)
	}
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// participation loads the caller's participation row, or an unauthorized
// error when the user is not on the requirement.
func (s *service) participation(ctx context.Context, userID, requirementID string) (*domain.Participation, error) {
	rows, err := s.adapter.Select(ctx, participantsTable,
		storage.Record{"user_id": userID, "requirement_id": requirementID}, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.NewUnauthorized("user does not participate in this requirement")
	}

	part := participationFromRecord(rows[0])
	return &part, nil
}

func (s *service) getRequirement(ctx context.Context, requirementID string) (*domain.Requirement, error) {
	rows, err := s.adapter.Select(ctx, requirementsTable,
		storage.Record{"id": requirementID}, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.NewNotFound("requirement not found")
	}

	req := requirementFromRecord(rows[0])
	return &req, nil
}

func (s *service) contents(ctx context.Context, requirementID string) ([]domain.ContentSubmission, error) {
	rows, err := s.adapter.Select(ctx, contentsTable,
		storage.Record{"requirement_id": requirementID}, nil, 0)
	if err != nil {
		return nil, err
	}

	subs := make([]domain.ContentSubmission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, contentFromRecord(r))
	}
	return subs, nil
}

// Record mapping

func requirementToRecord(req domain.Requirement) storage.Record {
	return storage.Record{
		"id":          req.ID,
		"title":       req.Title,
		"description": req.Description,
		"creator_id":  req.CreatorID,
		"status":      string(req.Status),
		"created_at":  req.CreatedAt.Format(time.RFC3339),
		"updated_at":  req.UpdatedAt.Format(time.RFC3339),
	}
}

func requirementFromRecord(r storage.Record) domain.Requirement {
	return domain.Requirement{
		ID:          r.String("id"),
		Title:       r.String("title"),
		Description: r.String("description"),
		CreatorID:   r.String("creator_id"),
		Status:      domain.Status(r.String("status")),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
}

func participationFromRecord(r storage.Record) domain.Participation {
	return domain.Participation{
		UserID:        r.String("user_id"),
		RequirementID: r.String("requirement_id"),
		Role:          domain.Role(r.String("role")),
		JoinedAt:      r.Time("joined_at"),
	}
}

func contentFromRecord(r storage.Record) domain.ContentSubmission {
	return domain.ContentSubmission{
		ID:            r.String("id"),
		RequirementID: r.String("requirement_id"),
		ContentType:   domain.ContentType(r.String("content_type")),
		ContentText:   r.String("content_text"),
		FilePath:      r.String("file_path"),
		SubmittedBy:   r.String("submitted_by"),
		SubmittedAt:   r.Time("submitted_at"),
	}
}
