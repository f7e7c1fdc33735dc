package reconcile

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/internal/normalize"
	"github.com/parcelfolio/parcelfolio/pkg/regrid"
)

// ErrorKind classifies a per-item batch failure.
type ErrorKind string

const (
	KindDuplicate   ErrorKind = "duplicate"
	KindValidation  ErrorKind = "validation"
	KindProvider    ErrorKind = "provider"
	KindPersistence ErrorKind = "persistence"
)

// BatchError records one failed batch item.
type BatchError struct {
	Input CreateInput `json:"input"`
	Error string      `json:"error"`
	Kind  ErrorKind   `json:"kind"`
}

// BatchSummary aggregates a bulk-create outcome.
type BatchSummary struct {
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Source     string `json:"source"`
}

// BatchResult is the full outcome of a bulk create. Every input lands in
// exactly one of Created or Errors, and Successful + Failed == Total.
type BatchResult struct {
	Created []model.PropertyRecord `json:"created"`
	Errors  []BatchError           `json:"errors"`
	Summary BatchSummary           `json:"summary"`
}

// BulkCreate drives the create path over a list of inputs. Duplicates are
// detected up front for the whole batch, before any provider lookups, so the
// caller can separate "already exists" from provider or creation failures in
// the summary. Unique candidates are then processed in fixed-size chunks;
// one item's failure never affects sibling items.
func (e *Engine) BulkCreate(ctx context.Context, userID, source string, inputs []CreateInput) (*BatchResult, error) {
	if userID == "" {
		return nil, &ValidationError{Reason: "user id is required"}
	}

	result := &BatchResult{
		Summary: BatchSummary{Total: len(inputs), Source: source},
	}

	// Duplicate pre-pass: partition inputs before any provider traffic.
	var unique []CreateInput
	for _, in := range inputs {
		apn := normalize.CleanParcelNumber(in.ParcelNumber)
		if apn == "" {
			unique = append(unique, in)
			continue
		}

		match, err := e.CheckDuplicate(ctx, apn, userID)
		if err != nil {
			result.Errors = append(result.Errors, BatchError{
				Input: in, Error: err.Error(), Kind: classifyKind(err),
			})
			continue
		}
		if match.Found {
			dup := &DuplicateError{ParcelNumber: apn, ExistingID: match.Record.ID}
			result.Errors = append(result.Errors, BatchError{
				Input: in, Error: dup.Error(), Kind: KindDuplicate,
			})
			continue
		}
		unique = append(unique, in)
	}

	// Process unique candidates in sequential chunks; items within a chunk
	// run concurrently. The chunk size bounds concurrent load on the
	// provider and the store.
	var mu sync.Mutex
	for start := 0; start < len(unique); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(unique) {
			end = len(unique)
		}

		var g errgroup.Group
		for _, in := range unique[start:end] {
			g.Go(func() error {
				created, err := e.Create(ctx, userID, in)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Errors = append(result.Errors, BatchError{
						Input: in, Error: err.Error(), Kind: classifyKind(err),
					})
					return nil // per-item failures never abort the batch
				}
				result.Created = append(result.Created, *created)
				return nil
			})
		}
		_ = g.Wait()
	}

	result.Summary.Successful = len(result.Created)
	result.Summary.Failed = len(result.Errors)

	zap.L().Info("bulk create finished",
		zap.String("source", source),
		zap.Int("total", result.Summary.Total),
		zap.Int("successful", result.Summary.Successful),
		zap.Int("failed", result.Summary.Failed),
	)
	return result, nil
}

// classifyKind maps an error from the create path to its batch error kind.
func classifyKind(err error) ErrorKind {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return KindDuplicate
	}
	var val *ValidationError
	if errors.As(err, &val) {
		return KindValidation
	}
	var unavailable *ProviderUnavailableError
	var provider *regrid.ProviderError
	if errors.As(err, &unavailable) || errors.As(err, &provider) {
		return KindProvider
	}
	return KindPersistence
}
