// Package store persists property records. All operations are scoped by the
// owning user's id; the store never answers a query across users.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/parcelfolio/parcelfolio/internal/model"
)

// ErrDuplicateParcel is returned by Create when the unique
// (user, parcel number) constraint rejects the insert. This is the backstop
// for two creates racing past the duplicate pre-check.
var ErrDuplicateParcel = eris.New("store: parcel number already exists for user")

// ErrNotFound is returned by operations that target a specific record when no
// record with that id belongs to the user. Callers match it to separate
// "absent" from infrastructure failures.
var ErrNotFound = eris.New("store: property not found")

// Filter specifies criteria for listing a user's properties. Search performs
// substring matching across address, parcel number, and zip.
type Filter struct {
	City   string   `json:"city,omitempty"`
	State  string   `json:"state,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Search string   `json:"search,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// Store defines the persistence interface for property records.
type Store interface {
	// Get returns the record with the given id owned by userID, or (nil, nil)
	// when absent.
	Get(ctx context.Context, id, userID string) (*model.PropertyRecord, error)

	// Create inserts a new record and returns the persisted row.
	Create(ctx context.Context, rec *model.PropertyRecord) (*model.PropertyRecord, error)

	// Update replaces the mutable fields of the record identified by id and
	// userID and returns the updated row.
	Update(ctx context.Context, id, userID string, rec *model.PropertyRecord) (*model.PropertyRecord, error)

	// List returns the user's records matching the filter.
	List(ctx context.Context, userID string, f Filter) ([]model.PropertyRecord, error)

	// Delete removes the record owned by userID.
	Delete(ctx context.Context, id, userID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
