package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tahmid/notestack/internal/auth"
	"github.com/tahmid/notestack/internal/service"
)

// Upload limits, enforced here before the service ever sees the request.
const (
	// MaxUploadBytes caps the PDF payload at 10 MiB.
	MaxUploadBytes = 10 << 20

	// maxFormOverhead leaves room for the multipart framing and text fields
	// on top of the file itself.
	maxFormOverhead = 1 << 20
)

// pdfMagic is the signature every PDF starts with. The declared content type
// is checked too, but the client controls that header; the sniff does not
// trust it.
var pdfMagic = []byte("%PDF")

// NoteHandler exposes the note lifecycle over HTTP: public browsing, member
// uploads and deletions, and the admin moderation queue. Authorization is
// split between the router middleware (authentication, admin role) and the
// service (ownership on delete).
type NoteHandler struct {
	notes  *service.NoteService
	logger *slog.Logger
}

// NewNoteHandler creates a NoteHandler.
func NewNoteHandler(notes *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, logger: logger}
}

// HandleListApproved returns every approved note, oldest first.
//
// HTTP: GET /api/notes (public)
func (h *NoteHandler) HandleListApproved(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.ListApproved(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleGet returns a single note with a freshly signed download URL.
//
// HTTP: GET /api/notes/{noteID} (public)
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.GetByID(r.Context(), chi.URLParam(r, "noteID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// HandleUpload accepts a multipart PDF upload and creates a pending note.
//
// HTTP: POST /api/notes/upload (authenticated)
// Form fields: file, title, course, professor, semester, description (optional)
//
// The limits live here, not in the service: MaxBytesReader rejects oversized
// bodies while they stream in, and the PDF check runs on both the declared
// content type and the leading bytes of the file.
func (h *NoteHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "authentication required",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+maxFormOverhead)
	if err := r.ParseMultipartForm(MaxUploadBytes + maxFormOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "upload exceeds the 10 MiB limit",
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid multipart form",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "file is required",
		})
		return
	}
	defer file.Close()

	if header.Size > MaxUploadBytes {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "upload exceeds the 10 MiB limit",
		})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("reading upload failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "could not read uploaded file",
		})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "application/pdf" || !bytes.HasPrefix(data, pdfMagic) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "only PDF files are accepted",
		})
		return
	}

	note, err := h.notes.Create(r.Context(), service.CreateParams{
		Title:       r.FormValue("title"),
		Course:      r.FormValue("course"),
		Professor:   r.FormValue("professor"),
		Semester:    r.FormValue("semester"),
		Description: r.FormValue("description"),
		FileName:    header.Filename,
		FileType:    contentType,
		FileData:    data,
		OwnerID:     identity.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Note uploaded successfully and is pending approval",
		"note":    note,
	})
}

// HandleMyNotes returns the caller's own uploads, any status.
//
// HTTP: GET /api/notes/my-notes (authenticated)
func (h *NoteHandler) HandleMyNotes(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "authentication required",
		})
		return
	}

	notes, err := h.notes.ListByOwner(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleDelete removes a note. The service decides whether the caller may:
// the uploader and admins can, anyone else gets 403.
//
// HTTP: DELETE /api/notes/{noteID} (authenticated)
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "authentication required",
		})
		return
	}

	note, err := h.notes.Delete(r.Context(), chi.URLParam(r, "noteID"), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Note deleted successfully",
		"note":    note,
	})
}

// HandleListPending returns the moderation queue.
//
// HTTP: GET /api/notes/admin/pending (admin)
func (h *NoteHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleApprove publishes a pending note.
//
// HTTP: POST /api/notes/admin/{noteID}/approve (admin)
func (h *NoteHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	note, err := h.notes.Approve(r.Context(), chi.URLParam(r, "noteID"), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Note approved",
		"note":    note,
	})
}

// HandleReject removes a pending note and its file permanently.
//
// HTTP: POST /api/notes/admin/{noteID}/reject (admin)
func (h *NoteHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	note, err := h.notes.Reject(r.Context(), chi.URLParam(r, "noteID"), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Note rejected and removed",
		"note":    note,
	})
}
