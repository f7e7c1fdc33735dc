// Package reconcile orchestrates create and refresh of property records:
// duplicate gating, provider lookups, and merging fresh provider data with
// stored, possibly user-edited, records.
package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/internal/normalize"
	"github.com/parcelfolio/parcelfolio/internal/store"
	"github.com/parcelfolio/parcelfolio/pkg/regrid"
)

const defaultChunkSize = 10

// CreateInput is the caller-supplied partial record for the create path.
type CreateInput struct {
	ParcelNumber string `json:"parcel_number,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`

	// ExternalID is a previously-resolved provider record id, e.g. from an
	// earlier address search surfaced to the user.
	ExternalID string `json:"external_id,omitempty"`

	// User-authored fields; provider data never populates these.
	Notes             string                   `json:"notes,omitempty"`
	Tags              []string                 `json:"tags,omitempty"`
	InsuranceProvider string                   `json:"insurance_provider,omitempty"`
	Maintenance       []model.MaintenanceEntry `json:"maintenance,omitempty"`
}

// Engine composes the duplicate resolver, provider client, and store into
// the create, refresh, and bulk-create flows.
type Engine struct {
	store     store.Store
	provider  regrid.Client
	chunkSize int
}

// Option configures the Engine.
type Option func(*Engine)

// WithChunkSize sets the bulk-create chunk size, the number of items
// processed together between chunk boundaries. A rate control, not a
// correctness parameter.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// New creates a reconciliation Engine.
func New(st store.Store, provider regrid.Client, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		provider:  provider,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create builds and persists a new property record for the user. If a parcel
// number is supplied and already exists in the user's record set, creation
// fails with DuplicateError and nothing is persisted.
func (e *Engine) Create(ctx context.Context, userID string, in CreateInput) (*model.PropertyRecord, error) {
	if userID == "" {
		return nil, &ValidationError{Reason: "user id is required"}
	}

	apn := normalize.CleanParcelNumber(in.ParcelNumber)
	if apn == "" && strings.TrimSpace(in.Address) == "" {
		return nil, &ValidationError{Reason: "an address or parcel number is required"}
	}

	if apn != "" {
		match, err := e.CheckDuplicate(ctx, apn, userID)
		if err != nil {
			return nil, err
		}
		if match.Found {
			return nil, &DuplicateError{ParcelNumber: apn, ExistingID: match.Record.ID}
		}
	}

	parcel, err := e.fetchParcel(ctx, apn, in)
	if err != nil {
		return nil, &ProviderUnavailableError{Err: err}
	}

	rec := mergeCreate(userID, in, apn, parcel)

	created, err := e.store.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateParcel) {
			// Two creates raced past the duplicate pre-check; the store's
			// unique constraint is the authoritative gate. The merged record
			// carries the parcel number even when the caller supplied none
			// and the provider resolved it from the address.
			return nil, &DuplicateError{ParcelNumber: rec.ParcelNumber}
		}
		return nil, eris.Wrap(err, "reconcile: create")
	}
	if created == nil {
		return nil, &PersistenceIntegrityError{Op: "create"}
	}
	return created, nil
}

// fetchParcel selects the provider data source for a create: parcel number
// first, then a pre-resolved external id, then address search with a detail
// fetch on the top candidate. No source yielding data is not an error; the
// record is created from caller fields alone.
func (e *Engine) fetchParcel(ctx context.Context, apn string, in CreateInput) (*model.ParcelRecord, error) {
	switch {
	case apn != "":
		return e.provider.ByParcelNumber(ctx, apn, in.State)

	case in.ExternalID != "":
		return e.provider.ByID(ctx, in.ExternalID)

	default:
		candidates, err := e.provider.Search(ctx, regrid.SearchQuery{
			Text:  in.Address,
			City:  in.City,
			State: in.State,
			Limit: 1,
		})
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}

		detail, err := e.provider.ByID(ctx, candidates[0].ID)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			// Detail endpoint lost the record between search and fetch; the
			// search candidate's inline fields are still usable.
			rec := candidates[0].Record
			return &rec, nil
		}
		return detail, nil
	}
}

// Refresh re-fetches provider data for an existing record and merges it in
// without erasing previously known data or touching user-authored fields.
func (e *Engine) Refresh(ctx context.Context, id, userID string) (*model.PropertyRecord, error) {
	existing, err := e.store.Get(ctx, id, userID)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: refresh lookup")
	}
	if existing == nil {
		return nil, &NotFoundError{ID: id}
	}
	if existing.ParcelNumber == "" {
		return nil, &RefreshIneligibleError{ID: id}
	}

	parcel, err := e.provider.ByParcelNumber(ctx, existing.ParcelNumber, existing.State)
	if err != nil {
		return nil, &ProviderUnavailableError{Err: err}
	}

	merged := mergeRefresh(existing, parcel)

	updated, err := e.store.Update(ctx, id, userID, merged)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: refresh update")
	}
	if updated == nil {
		return nil, &PersistenceIntegrityError{Op: "refresh"}
	}
	return updated, nil
}
