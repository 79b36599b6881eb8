package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/tahmid/notestack/internal/apperror"
	"github.com/tahmid/notestack/internal/model"
	"github.com/tahmid/notestack/internal/repository"
)

// UserRepo implements repository.UserRepository on the shared connection
// pool. Obtain one via DB.Users.
type UserRepo struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserRepo)(nil)

// Provider names accepted by GetByProviderID and LinkProviderID. Kept here so
// the column lookup stays a closed set — provider strings never reach SQL
// unvalidated.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
)

const userColumns = `id, email, first_name, last_name, password_hash, role,
	google_id, microsoft_id, created_at, updated_at`

func providerColumn(provider string) (string, error) {
	switch provider {
	case ProviderGoogle:
		return "google_id", nil
	case ProviderMicrosoft:
		return "microsoft_id", nil
	default:
		return "", fmt.Errorf("sqlite: unknown identity provider %q", provider)
	}
}

// Create inserts a new user. ID, role default, and timestamps are assigned
// here. A duplicate email surfaces as apperror.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, password_hash, role,
			google_id, microsoft_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Role,
		nullIfEmpty(user.GoogleID),
		nullIfEmpty(user.MicrosoftID),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive — emails are stored
// lowercased by the service layer, but match loosely here as a belt).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}

	return user, nil
}

// GetByProviderID retrieves the user linked to the given external identity.
func (r *UserRepo) GetByProviderID(ctx context.Context, provider, externalID string) (*model.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}

	row := r.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, externalID)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", provider+":"+externalID)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s id: %w", provider, err)
	}

	return user, nil
}

// LinkProviderID attaches an external identity to an existing user. Used when
// a sign-in from a new provider resolves to an account we already know by
// email. The unique index rejects linking an identity that already belongs to
// a different user.
func (r *UserRepo) LinkProviderID(ctx context.Context, userID, provider, externalID string) error {
	column, err := providerColumn(provider)
	if err != nil {
		return err
	}

	result, err := r.conn.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		externalID,
		time.Now(),
		userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user identity", provider+":"+externalID)
		}
		return fmt.Errorf("sqlite: linking %s id to user %s: %w", provider, userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}

	return nil
}

// Delete removes a user account. Their notes cascade via the foreign key;
// blob cleanup for those notes is the service layer's job before calling this.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u           model.User
		googleID    sql.NullString
		microsoftID sql.NullString
	)
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.Role,
		&googleID,
		&microsoftID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GoogleID = googleID.String
	u.MicrosoftID = microsoftID.String
	return &u, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation detects SQLite unique-constraint failures. The modernc
// driver surfaces them as plain errors containing the SQLite error text, so
// string matching is the practical check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
