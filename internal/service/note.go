// Package service contains the business logic layer of the application.
//
// The layering follows the usual three-layer shape:
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (this pkg)  → validates, enforces rules, orchestrates
//	Repository / Blob   → reads and writes storage
//
// Services accept plain values and context, never *http.Request, and return
// domain errors from internal/apperror rather than HTTP status codes. The
// handler layer owns the translation in both directions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/tahmid/notestack/internal/apperror"
	"github.com/tahmid/notestack/internal/auth"
	"github.com/tahmid/notestack/internal/blob"
	"github.com/tahmid/notestack/internal/model"
	"github.com/tahmid/notestack/internal/repository"
)

// Validation constants.
const (
	MaxTitleLength       = 200
	MaxFieldLength       = 100
	MaxDescriptionLength = 2000

	// SignedURLTTL is how long a generated download link stays valid.
	SignedURLTTL = time.Hour
)

// NoteService is the single authority over note state transitions and their
// coupling to blob storage.
//
// Blob and row operations are sequential, not atomic as a pair. The ordering
// is fixed: on create, the blob is written before the row is inserted; on
// reject/delete, the blob is removed before the row. A crash between the two
// steps leaves either an orphaned blob or a row pointing at a missing blob.
// There is no reconciliation job; the window is accepted and kept narrow by
// doing the two calls back to back. The row-level writes themselves are
// conditional, so concurrent transitions on the same note resolve to exactly
// one winner.
type NoteService struct {
	notes  repository.NoteRepository
	blobs  blob.Store
	logger *slog.Logger
}

// NewNoteService creates a NoteService. The caller decides which repository
// and blob store implementations to inject (SQLite + MinIO in production,
// mocks in tests).
func NewNoteService(notes repository.NoteRepository, blobs blob.Store, logger *slog.Logger) *NoteService {
	return &NoteService{
		notes:  notes,
		blobs:  blobs,
		logger: logger,
	}
}

// CreateParams carries everything needed to create a note. The file bytes
// arrive in memory — uploads are capped at 10 MiB at the API boundary, so
// buffering is fine.
type CreateParams struct {
	Title       string
	Course      string
	Professor   string
	Semester    string
	Description string
	FileName    string
	FileType    string
	FileData    []byte
	OwnerID     string
}

// Create stores the file bytes in the blob store and then inserts a pending
// note row referencing the generated key.
//
// The blob write must complete before the row insert is attempted, so a
// storage failure never leaves a row pointing at nothing. If the row insert
// fails after a successful blob write, the blob is deleted best-effort to
// avoid an orphan; a failure of that cleanup is logged and accepted.
func (s *NoteService) Create(ctx context.Context, p CreateParams) (*model.Note, error) {
	if err := validateCreateParams(&p); err != nil {
		return nil, err
	}

	key := s.fileKey(p)

	err := s.blobs.Put(ctx, key, blob.Object{
		ContentType: p.FileType,
		Data:        p.FileData,
		Metadata: map[string]string{
			"userId":       p.OwnerID,
			"course":       p.Course,
			"semester":     p.Semester,
			"originalName": p.FileName,
		},
	})
	if err != nil {
		s.logger.Error("blob upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	note := &model.Note{
		Title:       p.Title,
		Course:      p.Course,
		Professor:   p.Professor,
		Semester:    p.Semester,
		Description: p.Description,
		FileKey:     key,
		FileName:    p.FileName,
		FileSize:    int64(len(p.FileData)),
		FileType:    p.FileType,
		Status:      model.StatusPending,
		UploadedBy:  p.OwnerID,
	}

	if err := s.notes.Create(ctx, note); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Error("orphaned blob after failed row insert",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.Info("note created",
		slog.String("id", note.ID),
		slog.String("owner", note.UploadedBy),
		slog.String("course", note.Course),
	)

	return note, nil
}

// ListApproved returns all approved notes, oldest first. No pagination — an
// explicit limitation of the current API, not an oversight.
func (s *NoteService) ListApproved(ctx context.Context) ([]model.Note, error) {
	notes, err := s.notes.ListByStatus(ctx, model.StatusApproved)
	if err != nil {
		s.logger.Error("failed to list approved notes", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing approved notes: %w", err)
	}
	return notes, nil
}

// ListByOwner returns all notes uploaded by ownerID, any status.
func (s *NoteService) ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, apperror.ValidationFailed("ownerId", "owner ID is required")
	}

	notes, err := s.notes.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to list owner notes",
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing notes for owner: %w", err)
	}
	return notes, nil
}

// ListPending returns all notes awaiting moderation. Admin-only by contract;
// the route middleware enforces the role, not this method.
func (s *NoteService) ListPending(ctx context.Context) ([]model.Note, error) {
	notes, err := s.notes.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		s.logger.Error("failed to list pending notes", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing pending notes: %w", err)
	}
	return notes, nil
}

// Approve marks the note approved and records the approving admin.
// Approving an already-approved note succeeds again — the terminal state is
// the same, with the latest admin recorded. Returns NotFound if the note no
// longer exists.
func (s *NoteService) Approve(ctx context.Context, noteID, adminID string) (*model.Note, error) {
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	note, err := s.notes.SetApproved(ctx, noteID, adminID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("note approved",
		slog.String("id", noteID),
		slog.String("admin", adminID),
	)

	return note, nil
}

// Reject removes a pending note entirely: the blob is deleted, then the row.
// Rejected content is not retained — the returned value is a synthesized
// representation carrying status rejected and the admin's ID, for display
// only; it corresponds to no stored row once this returns. The store keeps
// no record that the note ever existed.
//
// If the blob deletion succeeds but the row deletion fails, the row survives
// pointing at a missing blob; there is no compensating transaction.
func (s *NoteService) Reject(ctx context.Context, noteID, adminID string) (*model.Note, error) {
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Delete(ctx, note.FileKey); err != nil {
		s.logger.Error("blob delete failed during reject",
			slog.String("id", noteID),
			slog.String("key", note.FileKey),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// Conditional delete: a concurrent reject or owner delete of the same
	// note leaves exactly one caller seeing success; the rest get NotFound.
	if err := s.notes.Delete(ctx, noteID); err != nil {
		return nil, err
	}

	s.logger.Info("note rejected",
		slog.String("id", noteID),
		slog.String("admin", adminID),
	)

	rejected := *note
	rejected.Status = model.StatusRejected
	rejected.ApprovedBy = adminID
	rejected.UpdatedAt = time.Now()
	return &rejected, nil
}

// NoteWithURL bundles a note with a freshly signed download URL.
type NoteWithURL struct {
	model.Note
	FileURL string `json:"fileUrl"`
}

// GetByID returns the note plus a time-limited signed URL for its blob.
// The URL is regenerated on every call — never cached.
func (s *NoteService) GetByID(ctx context.Context, noteID string) (*NoteWithURL, error) {
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	url, err := s.blobs.SignedURL(ctx, note.FileKey, SignedURLTTL)
	if err != nil {
		s.logger.Error("signed URL generation failed",
			slog.String("id", noteID),
			slog.String("key", note.FileKey),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return &NoteWithURL{Note: *note, FileURL: url}, nil
}

// Delete removes a note and its blob on behalf of requester. Allowed when the
// requester uploaded the note or holds the admin role; anyone else gets
// ErrUnauthorized and the note is left untouched. Returns the deleted row.
//
// The row deletion is conditional, so two concurrent deletes of the same note
// resolve to one winner — the loser sees NotFound.
func (s *NoteService) Delete(ctx context.Context, noteID string, requester auth.Identity) (*model.Note, error) {
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if note.UploadedBy != requester.UserID && requester.Role != model.RoleAdmin {
		return nil, apperror.Unauthorized("you do not own this note")
	}

	if err := s.blobs.Delete(ctx, note.FileKey); err != nil {
		s.logger.Error("blob delete failed during delete",
			slog.String("id", noteID),
			slog.String("key", note.FileKey),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := s.notes.Delete(ctx, noteID); err != nil {
		return nil, err
	}

	s.logger.Info("note deleted",
		slog.String("id", noteID),
		slog.String("requester", requester.UserID),
	)

	return note, nil
}

// fileKey builds a collision-resistant blob key scoped by owner, course, and
// semester. The xid suffix keeps two uploads of the same filename in the
// same second from colliding.
func (s *NoteService) fileKey(p CreateParams) string {
	name := path.Base(p.FileName)
	return fmt.Sprintf("notes/%s/%s/%s/%d-%s-%s",
		p.OwnerID,
		sanitizeKeyPart(p.Course),
		sanitizeKeyPart(p.Semester),
		time.Now().Unix(),
		xid.New().String(),
		name,
	)
}

// sanitizeKeyPart makes a user-supplied field safe to embed in an object key.
func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}

func validateCreateParams(p *CreateParams) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Course = strings.TrimSpace(p.Course)
	p.Professor = strings.TrimSpace(p.Professor)
	p.Semester = strings.TrimSpace(p.Semester)
	p.Description = strings.TrimSpace(p.Description)

	switch {
	case p.Title == "":
		return apperror.ValidationFailed("title", "title is required")
	case len(p.Title) > MaxTitleLength:
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	case p.Course == "":
		return apperror.ValidationFailed("course", "course is required")
	case len(p.Course) > MaxFieldLength:
		return apperror.ValidationFailed("course",
			fmt.Sprintf("course must be %d characters or less", MaxFieldLength))
	case p.Professor == "":
		return apperror.ValidationFailed("professor", "professor is required")
	case len(p.Professor) > MaxFieldLength:
		return apperror.ValidationFailed("professor",
			fmt.Sprintf("professor must be %d characters or less", MaxFieldLength))
	case p.Semester == "":
		return apperror.ValidationFailed("semester", "semester is required")
	case len(p.Semester) > MaxFieldLength:
		return apperror.ValidationFailed("semester",
			fmt.Sprintf("semester must be %d characters or less", MaxFieldLength))
	case len(p.Description) > MaxDescriptionLength:
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	case len(p.FileData) == 0:
		return apperror.ValidationFailed("file", "file is required")
	case p.OwnerID == "":
		return apperror.ValidationFailed("ownerId", "owner ID is required")
	}

	return nil
}
