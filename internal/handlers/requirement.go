package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"reqspec-backend/internal/domain"
	"reqspec-backend/internal/service/requirement"
	"reqspec-backend/internal/storage"
	"reqspec-backend/pkg/api"
)

// RequirementHandler handles requirement-related HTTP requests.
type RequirementHandler struct {
	service requirement.Service
	adapter *storage.Adapter
	logger  *zap.Logger
}

// NewRequirementHandler creates a new handler over the requirement service.
func NewRequirementHandler(service requirement.Service, adapter *storage.Adapter, logger *zap.Logger) *RequirementHandler {
	return &RequirementHandler{service: service, adapter: adapter, logger: logger}
}

// Router assembles the full HTTP routing tree.
func (h *RequirementHandler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticator)

		r.Get("/requirements", h.ListRequirements)
		r.Post("/requirements", h.CreateRequirement)
		r.Get("/requirements/{requirementId}", h.GetRequirement)
		r.Put("/requirements/{requirementId}", h.UpdateRequirement)
		r.Delete("/requirements/{requirementId}", h.DeleteRequirement)

		r.Get("/requirements/{requirementId}/participants", h.ListParticipants)
		r.Post("/requirements/{requirementId}/participants", h.InviteParticipant)
		r.Delete("/requirements/{requirementId}/participants/{userId}", h.RemoveParticipant)

		r.Get("/requirements/{requirementId}/contents", h.ListContents)
		r.Post("/requirements/{requirementId}/contents", h.SubmitContent)
		r.Delete("/requirements/{requirementId}/contents/{contentId}", h.DeleteContent)

		r.Post("/requirements/{requirementId}/documents", h.GenerateDocument)
		r.Get("/requirements/{requirementId}/documents", h.ListDocuments)
		r.Get("/requirements/{requirementId}/documents/{version}", h.GetDocument)
		r.Delete("/requirements/{requirementId}/documents/{version}", h.DeleteDocument)
		r.Get("/requirements/{requirementId}/export/markdown", h.ExportMarkdown)
		r.Get("/requirements/{requirementId}/export/markdown/{version}", h.ExportMarkdown)
		r.Get("/requirements/{requirementId}/export/pdf", h.ExportPDF)
	})

	return r
}

// Health handles GET /api/health. It reports which backend the startup probe
// resolved; no authentication so load balancers can reach it.
func (h *RequirementHandler) Health(w http.ResponseWriter, r *http.Request) {
	diag := h.adapter.Diagnostics(r.Context())

	status := "ok"
	if !diag.Connected {
		status = "degraded"
	}
	api.Success(w, http.StatusOK, api.HealthResponse{
		Status:    status,
		Backend:   diag.Method,
		Detail:    diag.Detail,
		Connected: diag.Connected,
	})
}

// CreateRequirement handles POST /api/requirements.
func (h *RequirementHandler) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req api.CreateRequirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	api.Success(w, http.StatusCreated, requirementResponse(*created))
}

// ListRequirements handles GET /api/requirements.
func (h *RequirementHandler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reqs, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	out := make([]api.RequirementResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, requirementResponse(req))
	}
	api.Success(w, http.StatusOK, map[string][]api.RequirementResponse{"requirements": out})
}

// GetRequirement handles GET /api/requirements/{requirementId}.
func (h *RequirementHandler) GetRequirement(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	req, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "requirementId"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	api.Success(w, http.StatusOK, requirementResponse(*req))
}

// UpdateRequirement handles PUT /api/requirements/{requirementId}.
func (h *RequirementHandler) UpdateRequirement(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req api.UpdateRequirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "requirementId"),
		req.Title, req.Description, domain.Status(req.Status))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	api.Success(w, http.StatusOK, requirementResponse(*updated))
}

// DeleteRequirement handles DELETE /api/requirements/{requirementId}.
func (h *RequirementHandler) DeleteRequirement(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "requirementId")); err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InviteParticipant handles POST /api/requirements/{requirementId}/participants.
func (h *RequirementHandler) InviteParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req api.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	part, err := h.service.Invite(r.Context(), userID, chi.URLParam(r, "requirementId"), req.UserID)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	api.Success(w, http.StatusCreated, participantResponse(*part))
}

// RemoveParticipant handles DELETE /api/requirements/{requirementId}/participants/{userId}.
func (h *RequirementHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	err := h.service.RemoveParticipant(r.Context(), userID,
		chi.URLParam(r, "requirementId"), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListParticipants handles GET /api/requirements/{requirementId}/participants.
func (h *RequirementHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	parts, err := h.service.ListParticipants(r.Context(), userID, chi.URLParam(r, "requirementId"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	out := make([]api.ParticipantResponse, 0, len(parts))
	for _, p := range parts {
		out = append(out, participantResponse(p))
	}
	api.Success(w, http.StatusOK, map[string][]api.ParticipantResponse{"participants": out})
}

// SubmitContent handles POST /api/requirements/{requirementId}/contents.
func (h *RequirementHandler) SubmitContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req api.SubmitContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.service.SubmitContent(r.Context(), userID, chi.URLParam(r, "requirementId"),
		domain.ContentType(req.ContentType), req.Text, req.FilePath)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	api.Success(w, http.StatusCreated, contentResponse(*sub))
}

// ListContents handles GET /api/requirements/{requirementId}/contents.
func (h *RequirementHandler) ListContents(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	subs, err := h.service.ListContents(r.Context(), userID, chi.URLParam(r, "requirementId"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	out := make([]api.ContentResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, contentResponse(sub))
	}
	api.Success(w, http.StatusOK, map[string][]api.ContentResponse{"contents": out})
}

// DeleteContent handles DELETE /api/requirements/{requirementId}/contents/{contentId}.
func (h *RequirementHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	err := h.service.DeleteContent(r.Context(), userID,
		chi.URLParam(r, "requirementId"), chi.URLParam(r, "contentId"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateDocument handles POST /api/requirements/{requirementId}/documents.
func (h *RequirementHandler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	res, err := h.service.GenerateDocument(r.Context(), userID, chi.URLParam(r, "requirementId"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	api.Success(w, http.StatusCreated, api.GenerateResponse{
		Version:  res.Version,
		Fallback: res.Fallback,
		Content:  res.Content,
	})
}

// ListDocuments handles GET /api/requirements/{requirementId}/documents.
// Bodies are omitted from the listing; fetch a version for its content.
func (h *RequirementHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), userID, chi.URLParam(r, "requirementId"))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	out := make([]api.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp := documentResponse(doc)
		resp.Content = ""
		out = append(out, resp)
	}
	api.Success(w, http.StatusOK, map[string][]api.DocumentResponse{"documents": out})
}

// GetDocument handles GET /api/requirements/{requirementId}/documents/{version}.
func (h *RequirementHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		api.Error(w, http.StatusBadRequest, "version must be a positive integer")
		return
	}

	doc, err := h.service.GetDocument(r.Context(), userID, chi.URLParam(r, "requirementId"), version)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	api.Success(w, http.StatusOK, documentResponse(*doc))
}

// DeleteDocument handles DELETE /api/requirements/{requirementId}/documents/{version}.
func (h *RequirementHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		api.Error(w, http.StatusBadRequest, "version must be a positive integer")
		return
	}

	err = h.service.DeleteDocument(r.Context(), userID, chi.URLParam(r, "requirementId"), version)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportMarkdown handles GET /api/requirements/{requirementId}/export/markdown
// and its /{version} variant. Without a version the latest document is
// returned as a downloadable markdown file.
func (h *RequirementHandler) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	version := 0
	if raw := chi.URLParam(r, "version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			api.Error(w, http.StatusBadRequest, "version must be a positive integer")
			return
		}
		version = v
	}

	content, err := h.service.ExportMarkdown(r.Context(), userID, chi.URLParam(r, "requirementId"), version)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="requirement-document.md"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

// ExportPDF handles GET /api/requirements/{requirementId}/export/pdf. The PDF
// pipeline has been retired; the route stays so old clients get a clear
// answer instead of a 404.
func (h *RequirementHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	api.Error(w, http.StatusGone, "PDF export has been retired; use the markdown export instead")
}

// Response mapping

func requirementResponse(req domain.Requirement) api.RequirementResponse {
	return api.RequirementResponse{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   req.CreatorID,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   req.UpdatedAt.Format(time.RFC3339),
	}
}

func participantResponse(p domain.Participation) api.ParticipantResponse {
	return api.ParticipantResponse{
		UserID:   p.UserID,
		Role:     string(p.Role),
		JoinedAt: p.JoinedAt.Format(time.RFC3339),
	}
}

func contentResponse(sub domain.ContentSubmission) api.ContentResponse {
	return api.ContentResponse{
		ID:          sub.ID,
		ContentType: string(sub.ContentType),
		Text:        sub.ContentText,
		FilePath:    sub.FilePath,
		SubmittedBy: sub.SubmittedBy,
		SubmittedAt: sub.SubmittedAt.Format(time.RFC3339),
	}
}

func documentResponse(doc domain.DocumentVersion) api.DocumentResponse {
	return api.DocumentResponse{
		ID:            doc.ID,
		RequirementID: doc.RequirementID,
		Version:       doc.Version,
		Content:       doc.Content,
		GeneratedAt:   doc.GeneratedAt.Format(time.RFC3339),
	}
}
