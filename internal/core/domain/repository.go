package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrSchemaConflict = errors.New("schema version conflict")
)

type SchemaRepository interface {
	// Create persists a new schema document for a user.
	Create(ctx context.Context, schema *Schema) error

	// GetByUserID retrieves the active schema of a user.
	GetByUserID(ctx context.Context, userID string) (*Schema, error)

	// Update replaces the schema layout.
	// Implementations must handle Optimistic Locking (version check) so two
	// devices editing the layout cannot silently overwrite each other.
	Update(ctx context.Context, schema *Schema) error

	// GetChanges [SYNC] Returns only the deltas (changes) occurring after a specific date.
	GetChanges(ctx context.Context, userID string, since time.Time) ([]*Schema, error)
}

type UserRepository interface {
	// Create persists a new user account.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by its unique identifier.
	GetByID(ctx context.Context, id string) (*User, error)

	// UpdateStreaks stores recomputed streak counters.
	UpdateStreaks(ctx context.Context, id string, current, longest int) error
}
