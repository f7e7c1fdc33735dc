package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/internal/normalize"
	"github.com/parcelfolio/parcelfolio/internal/store"
)

// duplicateCandidateLimit bounds the fuzzy candidate fetch. Wider than a
// typical page so the true match cannot fall outside the candidate set for
// any realistic per-user record count.
const duplicateCandidateLimit = 50

// MatchResult is the outcome of a duplicate check.
type MatchResult struct {
	Found  bool                  `json:"found"`
	Record *model.PropertyRecord `json:"record,omitempty"`
}

// CheckDuplicate reports whether the user already has a record with this
// parcel number. The store's search is substring-oriented, not exact-match,
// so the fuzzy candidate set is filtered down to an exact case-insensitive
// parcel-number match client-side. Neither stage alone is sufficient: the
// fuzzy search admits false positives, and the store has no
// exact-lookup-by-field primitive.
func (e *Engine) CheckDuplicate(ctx context.Context, apn, userID string) (MatchResult, error) {
	apn = normalize.CleanParcelNumber(apn)
	if apn == "" {
		return MatchResult{}, &ValidationError{Reason: "parcel number is required"}
	}

	candidates, err := e.store.List(ctx, userID, store.Filter{
		Search: apn,
		Limit:  duplicateCandidateLimit,
	})
	if err != nil {
		return MatchResult{}, eris.Wrap(err, "reconcile: duplicate candidate fetch")
	}

	for i := range candidates {
		if foldEqual(candidates[i].ParcelNumber, apn) {
			return MatchResult{Found: true, Record: &candidates[i]}, nil
		}
	}
	return MatchResult{}, nil
}

// foldEqual compares parcel numbers under Unicode case folding.
func foldEqual(a, b string) bool {
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}
