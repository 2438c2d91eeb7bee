// package models defines the data model for the playlist sync tool
package models

import (
	"context"
	"time"
)

// Model is implemented by every persisted record.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository stores append-only records of type T.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error        // Create assigns an ID and inserts model
	Get(ctx context.Context, id string) (T, error)    // Get retrieves a model by its ID
	List(ctx context.Context, limit int) ([]T, error) // List returns the most recent models, newest first
}
