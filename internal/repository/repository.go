package repository

import (
	"context"

	"github.com/tahmid/notestack/internal/model"
)

// NoteRepository is the persistence boundary for notes.
//
// Status transitions are conditional writes: SetApproved and Delete report
// NotFound when the row is already gone, which is what keeps a concurrent
// approve/delete pair from both believing they won.
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	GetByID(ctx context.Context, id string) (*model.Note, error)
	ListByStatus(ctx context.Context, status string) ([]model.Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error)
	SetApproved(ctx context.Context, id, adminID string) (*model.Note, error)
	Delete(ctx context.Context, id string) error
}

// UserRepository is the persistence boundary for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByProviderID(ctx context.Context, provider, externalID string) (*model.User, error)
	LinkProviderID(ctx context.Context, userID, provider, externalID string) error
	Delete(ctx context.Context, id string) error
}
