package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// saveProfileRequest is the JSON body for PUT /profile.
type saveProfileRequest struct {
	Topics  []string `json:"topics" validate:"max=20,dive,min=1,max=200"`
	Authors []string `json:"authors" validate:"max=20,dive,min=1,max=200"`
}

// feedbackRequest is the JSON body for POST /feedback.
type feedbackRequest struct {
	PaperID string `json:"paper_id" validate:"required,max=300"`
	Action  string `json:"action" validate:"required,oneof=liked disliked"`
}

// folderRequest is the JSON body for folder create and rename.
type folderRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// folderPaperRequest is the JSON body for adding a paper to a folder.
type folderPaperRequest struct {
	PaperID string `json:"paper_id" validate:"required,max=300"`
}

// getProfile handles GET /api/v1/profile.
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	profile, err := s.profiles.LoadProfile(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// saveProfile handles PUT /api/v1/profile.
func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	var req saveProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	profile := &domain.Profile{Topics: req.Topics, Authors: req.Authors}
	if err := s.profiles.SaveProfile(ctx, user.ID, profile); err != nil {
		writeDomainError(w, err)
		return
	}

	if s.events != nil {
		s.events.PublishProfileUpdated(ctx, user.ID, len(req.Topics), len(req.Authors), false)
	}
	writeJSON(w, http.StatusOK, profile)
}

// clearProfile handles DELETE /api/v1/profile.
func (s *Server) clearProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	if err := s.profiles.ClearProfile(ctx, user.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	if s.events != nil {
		s.events.PublishProfileUpdated(ctx, user.ID, 0, 0, true)
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}

// getFeedback handles GET /api/v1/feedback.
func (s *Server) getFeedback(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	feedback, err := s.feedback.Load(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

// saveFeedback handles POST /api/v1/feedback.
// Re-rating a paper replaces the previous action.
func (s *Server) saveFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.feedback.Rate(ctx, user.ID, req.PaperID, domain.FeedbackAction(req.Action)); err != nil {
		writeDomainError(w, err)
		return
	}

	if s.events != nil {
		s.events.PublishFeedbackSaved(ctx, user.ID, req.PaperID, req.Action)
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "saved"})
}

// removeFeedback handles DELETE /api/v1/feedback?paper_id=...
// Paper IDs carry DOIs with slashes, so the ID travels as a query param.
func (s *Server) removeFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	paperID := r.URL.Query().Get("paper_id")
	if paperID == "" {
		writeDomainError(w, domain.NewValidationError("paper_id", "must not be empty"))
		return
	}

	if err := s.feedback.Unrate(ctx, user.ID, paperID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "removed"})
}

// createFolder handles POST /api/v1/folders.
func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	var req folderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	folder, err := s.folders.Create(ctx, &domain.Folder{UserID: user.ID, Name: req.Name})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// listFolders handles GET /api/v1/folders.
func (s *Server) listFolders(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	limit, offset := parseListParams(r)

	folders, err := s.folders.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listFoldersResponse{Folders: folders})
}

// getFolder handles GET /api/v1/folders/{folderID}.
func (s *Server) getFolder(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	folderID, ok := parseUUID(w, chi.URLParam(r, "folderID"), "folder_id")
	if !ok {
		return
	}

	folder, err := s.folders.GetByID(r.Context(), user.ID, folderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// renameFolder handles PATCH /api/v1/folders/{folderID}.
func (s *Server) renameFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	folderID, ok := parseUUID(w, chi.URLParam(r, "folderID"), "folder_id")
	if !ok {
		return
	}

	var req folderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.folders.Rename(ctx, user.ID, folderID, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "renamed"})
}

// deleteFolder handles DELETE /api/v1/folders/{folderID}.
func (s *Server) deleteFolder(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	folderID, ok := parseUUID(w, chi.URLParam(r, "folderID"), "folder_id")
	if !ok {
		return
	}

	if err := s.folders.Delete(r.Context(), user.ID, folderID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

// addFolderPaper handles POST /api/v1/folders/{folderID}/papers.
func (s *Server) addFolderPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	folderID, ok := parseUUID(w, chi.URLParam(r, "folderID"), "folder_id")
	if !ok {
		return
	}

	var req folderPaperRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.folders.AddPaper(ctx, user.ID, folderID, req.PaperID); err != nil {
		writeDomainError(w, err)
		return
	}

	if s.events != nil {
		s.events.PublishFolderPaperAdded(ctx, user.ID, folderID.String(), req.PaperID)
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "added"})
}

// removeFolderPaper handles DELETE /api/v1/folders/{folderID}/papers?paper_id=...
func (s *Server) removeFolderPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	folderID, ok := parseUUID(w, chi.URLParam(r, "folderID"), "folder_id")
	if !ok {
		return
	}

	paperID := r.URL.Query().Get("paper_id")
	if paperID == "" {
		writeDomainError(w, domain.NewValidationError("paper_id", "must not be empty"))
		return
	}

	if err := s.folders.RemovePaper(ctx, user.ID, folderID, paperID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "removed"})
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fieldName+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseListParams extracts limit and offset query parameters with bounds.
func parseListParams(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}
