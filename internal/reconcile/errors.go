package reconcile

import "fmt"

// DuplicateError means the parcel number already exists in the user's record
// set; creation is refused.
type DuplicateError struct {
	ParcelNumber string
	ExistingID   string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("reconcile: parcel %s already exists", e.ParcelNumber)
}

// NotFoundError means the requested record is absent for this owner.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reconcile: property not found: %s", e.ID)
}

// RefreshIneligibleError means the stored record has no parcel number;
// refresh is only defined for parcel-number-identified records.
type RefreshIneligibleError struct {
	ID string
}

func (e *RefreshIneligibleError) Error() string {
	return fmt.Sprintf("reconcile: property %s has no parcel number, cannot refresh", e.ID)
}

// ProviderUnavailableError wraps a provider lookup failure. The stored record
// is untouched when this is returned.
type ProviderUnavailableError struct {
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return "reconcile: provider unavailable: " + e.Err.Error()
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// PersistenceIntegrityError means persistence reported success but returned
// an empty record; the operation is treated as failed, not silently empty.
type PersistenceIntegrityError struct {
	Op string
}

func (e *PersistenceIntegrityError) Error() string {
	return fmt.Sprintf("reconcile: persistence returned no record on %s", e.Op)
}

// ValidationError means the caller input was malformed; rejected before any
// I/O was attempted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "reconcile: invalid input: " + e.Reason
}
