package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/pkg/regrid"
)

func TestBulkCreateAccounting(t *testing.T) {
	st := newFakeStore()

	// Pre-existing record makes one input a duplicate.
	_, err := st.Create(context.Background(), &model.PropertyRecord{
		UserID: "user-1", ParcelNumber: "DUP-1",
	})
	require.NoError(t, err)

	e := New(st, &fakeClient{}, WithChunkSize(2))

	inputs := []CreateInput{
		{ParcelNumber: "A-1", Address: "1 First St"},
		{ParcelNumber: "DUP-1", Address: "already here"},
		{}, // invalid: no address or parcel number
		{ParcelNumber: "B-2", Address: "2 Second St"},
		{Address: "3 Third St"}, // no APN, skips the duplicate pre-pass
	}

	result, err := e.BulkCreate(context.Background(), "user-1", "unit-test", inputs)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Summary.Total)
	assert.Equal(t, 3, result.Summary.Successful)
	assert.Equal(t, 2, result.Summary.Failed)
	assert.Equal(t, "unit-test", result.Summary.Source)

	// Every input lands in exactly one bucket.
	assert.Len(t, result.Created, result.Summary.Successful)
	assert.Len(t, result.Errors, result.Summary.Failed)

	kinds := map[ErrorKind]int{}
	for _, be := range result.Errors {
		kinds[be.Kind]++
	}
	assert.Equal(t, 1, kinds[KindDuplicate])
	assert.Equal(t, 1, kinds[KindValidation])
}

func TestBulkCreateIsolatesProviderFailures(t *testing.T) {
	st := newFakeStore()
	client := &fakeClient{apnErr: &regrid.ProviderError{StatusCode: 502}}
	e := New(st, client, WithChunkSize(3))

	inputs := []CreateInput{
		{ParcelNumber: "X-1"},
		{ParcelNumber: "X-2"},
		{Address: "no apn here"}, // address path does not hit the failing APN endpoint
	}

	result, err := e.BulkCreate(context.Background(), "user-1", "csv", inputs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.Successful)
	assert.Equal(t, 2, result.Summary.Failed)
	for _, be := range result.Errors {
		assert.Equal(t, KindProvider, be.Kind)
	}
}

func TestBulkCreateDuplicatesWithinBatch(t *testing.T) {
	st := newFakeStore()
	e := New(st, &fakeClient{}, WithChunkSize(1))

	// Same parcel number twice in one batch. The pre-pass sees no stored
	// record for either, so the second is caught by the store constraint
	// during its chunk.
	inputs := []CreateInput{
		{ParcelNumber: "SAME-1", Address: "a"},
		{ParcelNumber: "same-1", Address: "b"},
	}

	result, err := e.BulkCreate(context.Background(), "user-1", "csv", inputs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.Successful)
	assert.Equal(t, 1, result.Summary.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, KindDuplicate, result.Errors[0].Kind)
}

func TestBulkCreateEmptyInput(t *testing.T) {
	e := New(newFakeStore(), &fakeClient{})

	result, err := e.BulkCreate(context.Background(), "user-1", "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.Total)
	assert.Empty(t, result.Created)
	assert.Empty(t, result.Errors)
}

func TestBulkCreateRequiresUser(t *testing.T) {
	e := New(newFakeStore(), &fakeClient{})
	_, err := e.BulkCreate(context.Background(), "", "x", []CreateInput{{Address: "a"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestClassifyKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"duplicate", &DuplicateError{ParcelNumber: "1"}, KindDuplicate},
		{"validation", &ValidationError{Reason: "x"}, KindValidation},
		{"provider wrapper", &ProviderUnavailableError{Err: &regrid.ProviderError{StatusCode: 500}}, KindProvider},
		{"bare provider error", &regrid.ProviderError{StatusCode: 403}, KindProvider},
		{"anything else", assert.AnError, KindPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyKind(tt.err))
		})
	}
}
