package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stonenotes/stonenotes/internal/auth"
	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/internal/service"
	"github.com/stonenotes/stonenotes/pkg/httputil"
	"github.com/stonenotes/stonenotes/pkg/pagination"
)

// NoteHandler handles HTTP requests for the caller's notes.
type NoteHandler struct {
	service *service.NoteService
	logger  *slog.Logger
}

// NewNoteHandler creates a new note HTTP handler.
func NewNoteHandler(svc *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{service: svc, logger: logger}
}

// CreateNoteRequest is the JSON request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"max=10000"`
}

// UpdateNoteRequest is the JSON request body for updating a note.
type UpdateNoteRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content *string `json:"content" validate:"omitempty,max=10000"`
}

// Create handles POST /api/notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.Identify(r.Context())
	if !ok {
		writeUnauthenticated(w, r)
		return
	}

	var req CreateNoteRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	note, err := h.service.Create(r.Context(), ownerID, service.CreateNoteInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: note})
}

// List handles GET /api/notes. It accepts page, per_page, sortBy (createdAt,
// updatedAt, title) and sortDir (asc, desc).
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.Identify(r.Context())
	if !ok {
		writeUnauthenticated(w, r)
		return
	}

	q := r.URL.Query()
	sort, err := domain.ParseNoteSort(q.Get("sortBy"), q.Get("sortDir"))
	if err != nil {
		httputil.WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	params := pagination.FromRequest(r)
	notes, total, err := h.service.List(r.Context(), ownerID, sort, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPage(notes, total, params.Page, params.PerPage))
}

// Get handles GET /api/notes/{id}
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.Identify(r.Context())
	if !ok {
		writeUnauthenticated(w, r)
		return
	}

	id, ok := httputil.PathID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	note, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: note})
}

// Update handles PUT /api/notes/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.Identify(r.Context())
	if !ok {
		writeUnauthenticated(w, r)
		return
	}

	id, ok := httputil.PathID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateNoteRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	note, err := h.service.Update(r.Context(), ownerID, id, service.UpdateNoteInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: note})
}

// Delete handles DELETE /api/notes/{id}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.Identify(r.Context())
	if !ok {
		writeUnauthenticated(w, r)
		return
	}

	id, ok := httputil.PathID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ownerID, id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
