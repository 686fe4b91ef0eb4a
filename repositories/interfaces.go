package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/teftar/api/models"
)

// ErrNotFound is returned when a record does not exist or belongs to
// another owner.
var ErrNotFound = errors.New("record not found")

// ClientRepository handles client data operations. Every method is scoped
// to the owning user.
type ClientRepository interface {
	// List returns the owner's clients, newest first
	List(ctx context.Context, userID uuid.UUID) ([]*models.Client, error)

	// Create inserts a client
	Create(ctx context.Context, client *models.Client) error

	// GetByID retrieves one client
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Client, error)

	// Update applies a partial update and returns the stored record
	Update(ctx context.Context, id, userID uuid.UUID, patch models.ClientPatch) (*models.Client, error)

	// Delete removes a client
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
