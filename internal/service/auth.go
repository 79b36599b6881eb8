// Package service — authentication and account business logic.
//
// AuthService sits between the HTTP handlers and the repositories/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT) / PasswordService (bcrypt)
//
// It owns identity resolution for OAuth sign-ins (create or merge a User
// row from a provider profile), the direct email/password register and login
// paths, and account self-service.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tahmid/notestack/internal/apperror"
	"github.com/tahmid/notestack/internal/auth"
	"github.com/tahmid/notestack/internal/blob"
	"github.com/tahmid/notestack/internal/model"
	"github.com/tahmid/notestack/internal/repository"
)

// AuthService handles authentication and account lifecycle.
type AuthService struct {
	users     repository.UserRepository
	notes     repository.NoteRepository
	blobs     blob.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// The notes repository and blob store are needed for account deletion, which
// has to clean up the user's uploads.
func NewAuthService(
	users repository.UserRepository,
	notes repository.NoteRepository,
	blobs blob.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		notes:     notes,
		blobs:     blobs,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// ResolveIdentity turns a completed OAuth exchange into an authenticated
// user, creating or merging an account as needed, and mints the bearer
// token. Resolution order:
//
//  1. A user already linked to this (provider, external id) → sign them in.
//  2. A user with the same email → link the provider ID onto that row
//     (account merge), then sign them in.
//  3. Otherwise → create a new user with the profile's name parts.
//
// Both providers flow through this one path; nothing downstream branches on
// which provider produced the profile.
func (s *AuthService) ResolveIdentity(ctx context.Context, profile auth.Profile) (*AuthResult, error) {
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("service/auth: profile has no external ID")
	}

	user, err := s.users.GetByProviderID(ctx, profile.Provider, profile.ExternalID)
	switch {
	case err == nil:
		// Known identity.
	case isNotFound(err):
		user, err = s.resolveByEmailOrCreate(ctx, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up %s identity: %w", profile.Provider, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", profile.Provider),
	)

	return s.mintResult(user)
}

func (s *AuthService) resolveByEmailOrCreate(ctx context.Context, profile auth.Profile) (*model.User, error) {
	if profile.Email != "" {
		existing, err := s.users.GetByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			// Same email, new provider: merge by linking the identity.
			if err := s.users.LinkProviderID(ctx, existing.ID, profile.Provider, profile.ExternalID); err != nil {
				return nil, fmt.Errorf("service/auth: linking %s identity: %w", profile.Provider, err)
			}
			s.logger.Info("linked provider identity to existing account",
				slog.String("userID", existing.ID),
				slog.String("provider", profile.Provider),
			)
			return existing, nil
		case !isNotFound(err):
			return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
		}
	}

	user := &model.User{
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}
	switch profile.Provider {
	case "google":
		user.GoogleID = profile.ExternalID
	case "microsoft":
		user.MicrosoftID = profile.ExternalID
	default:
		return nil, fmt.Errorf("service/auth: unknown provider %q", profile.Provider)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user created from OAuth sign-in",
		slog.String("userID", user.ID),
		slog.String("provider", profile.Provider),
	)

	return user, nil
}

// Register creates an account with email and password and signs the user in.
// A taken email surfaces as ErrConflict.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if len(password) < 8 {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password is not usable")
	}

	user := &model.User{
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))

	return s.mintResult(user)
}

// Login authenticates an email/password pair. Both unknown email and wrong
// password come back as the same Unauthenticated error — no account
// enumeration through error messages.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	// OAuth-only accounts have no password to check.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthenticated("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthenticated("invalid email or password")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.mintResult(user)
}

// GetUser returns the profile for the given internal ID. Used by /api/users/me
// after the middleware has validated the token.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// DeleteAccount removes the user and everything they uploaded. Blobs are
// deleted best-effort before the row goes away (the notes rows cascade with
// the user); a blob that fails to delete is logged and skipped rather than
// blocking the account deletion.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	notes, err := s.notes.ListByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: listing notes for account deletion: %w", err)
	}

	for _, n := range notes {
		if err := s.blobs.Delete(ctx, n.FileKey); err != nil {
			s.logger.Error("blob delete failed during account deletion",
				slog.String("userID", userID),
				slog.String("key", n.FileKey),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("account deleted",
		slog.String("userID", userID),
		slog.Int("notesRemoved", len(notes)),
	)

	return nil
}

func (s *AuthService) mintResult(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
