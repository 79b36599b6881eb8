package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/tahmid/notestack/internal/apperror"
	"github.com/tahmid/notestack/internal/model"
	"github.com/tahmid/notestack/internal/repository"
)

// NoteRepo implements repository.NoteRepository on the shared connection
// pool. Obtain one via DB.Notes.
type NoteRepo struct {
	conn *sql.DB
}

var _ repository.NoteRepository = (*NoteRepo)(nil)

const noteColumns = `id, title, course, professor, semester, description,
	file_key, file_name, file_size, file_type, status,
	uploaded_by, approved_by, created_at, updated_at`

// Create inserts a new note row. The caller must have stored the blob first —
// FileKey has to be set and unique by the time this runs. ID and timestamps
// are assigned here and written back to the passed struct.
func (r *NoteRepo) Create(ctx context.Context, note *model.Note) error {
	note.ID = xid.New().String()
	if note.Status == "" {
		note.Status = model.StatusPending
	}

	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO notes (id, title, course, professor, semester, description,
			file_key, file_name, file_size, file_type, status,
			uploaded_by, approved_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID,
		note.Title,
		note.Course,
		note.Professor,
		note.Semester,
		note.Description,
		note.FileKey,
		note.FileName,
		note.FileSize,
		note.FileType,
		note.Status,
		note.UploadedBy,
		note.ApprovedBy,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}

	return nil
}

// GetByID retrieves a single note by its ID.
// Returns apperror.ErrNotFound if no row matches.
func (r *NoteRepo) GetByID(ctx context.Context, id string) (*model.Note, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)

	note, err := scanNote(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqlite: getting note %s: %w", id, err)
	}

	return note, nil
}

// ListByStatus returns every note with the given moderation status, oldest
// first. No pagination — listings are small and the API contract has none.
func (r *NoteRepo) ListByStatus(ctx context.Context, status string) ([]model.Note, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE status = ? ORDER BY created_at ASC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes by status %s: %w", status, err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

// ListByOwner returns every note uploaded by ownerID, any status.
func (r *NoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE uploaded_by = ?`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

// SetApproved marks the note approved and records the approving admin.
//
// The write is unconditional on status, so approving an already-approved note
// succeeds again with the new admin recorded (last write wins). RowsAffected
// distinguishes "row gone" — a concurrently deleted note comes back NotFound
// rather than silently succeeding.
func (r *NoteRepo) SetApproved(ctx context.Context, id, adminID string) (*model.Note, error) {
	result, err := r.conn.ExecContext(ctx,
		`UPDATE notes SET status = ?, approved_by = ?, updated_at = ? WHERE id = ?`,
		model.StatusApproved,
		adminID,
		time.Now(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: approving note %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("note", id)
	}

	return r.GetByID(ctx, id)
}

// Delete removes a note row. RowsAffected is the concurrency guard: of two
// racing deletes for the same ID, exactly one sees 1 row affected and the
// other gets NotFound.
func (r *NoteRepo) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting note %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", id)
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*model.Note, error) {
	var n model.Note
	err := s.Scan(
		&n.ID,
		&n.Title,
		&n.Course,
		&n.Professor,
		&n.Semester,
		&n.Description,
		&n.FileKey,
		&n.FileName,
		&n.FileSize,
		&n.FileType,
		&n.Status,
		&n.UploadedBy,
		&n.ApprovedBy,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]model.Note, error) {
	notes := []model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning note row: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notes: %w", err)
	}
	return notes, nil
}
