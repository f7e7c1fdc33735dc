package regrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelfolio/parcelfolio/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Token:     "test-token",
		BaseURL:   srv.URL,
		RateLimit: 1000, // don't throttle tests
	},
		WithHTTPClient(srv.Client()),
		WithRetry(retry.Config{MaxAttempts: 1}),
	)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	c, err := NewClient(Config{})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestByParcelNumber(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels/apn", r.URL.Path)
		assert.Equal(t, "123-45", r.URL.Query().Get("parcelnumb"))
		assert.Equal(t, "IL", r.URL.Query().Get("state"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"fields": map[string]any{
						"parcelnumb": "123-45",
						"saddress":   "100 Main St",
						"scity":      "Springfield",
					},
				},
			},
		})
	})

	rec, err := c.ByParcelNumber(context.Background(), "123-45", "IL")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "123-45", rec.ParcelNumber)
	assert.Equal(t, "100 Main St", rec.Address)
	assert.Equal(t, "Springfield", rec.City)
}

func TestByParcelNumberZeroResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	rec, err := c.ByParcelNumber(context.Background(), "nope", "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	})

	rec, err := c.ByParcelNumber(context.Background(), "123", "")
	assert.Nil(t, rec)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
	assert.Contains(t, perr.Body, "invalid token")
}

func TestSearchCapsLimit(t *testing.T) {
	var gotLimit string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels/address", r.URL.Path)
		gotLimit = r.URL.Query().Get("limit")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"id":    "rec-1",
					"score": 0.97,
					"fields": map[string]any{
						"address": "1 First St",
					},
				},
			},
		})
	})

	results, err := c.Search(context.Background(), SearchQuery{Text: "1 First St", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, "25", gotLimit)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-1", results[0].ID)
	assert.InDelta(t, 0.97, results[0].Score, 1e-9)
	assert.Equal(t, "1 First St", results[0].Record.Address)
}

func TestByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels/rec-42", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"fields": map[string]any{"parcelnumb": "42"}},
			},
		})
	})

	rec, err := c.ByID(context.Background(), "rec-42")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "42", rec.ParcelNumber)
}

func TestGetRetriesRateLimitResponses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"fields": map[string]any{"parcelnumb": "1"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Token: "t", BaseURL: srv.URL, RateLimit: 1000},
		WithHTTPClient(srv.Client()),
		WithRetry(retry.Config{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			ShouldRetry:    shouldRetry,
		}),
	)
	require.NoError(t, err)

	rec, err := c.ByParcelNumber(context.Background(), "1", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBatchByParcelNumbersDropsFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apn := r.URL.Query().Get("parcelnumb")
		switch apn {
		case "bad":
			w.WriteHeader(http.StatusInternalServerError)
		case "missing":
			_, _ = w.Write([]byte(`{"results":[]}`))
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"fields": map[string]any{"parcelnumb": apn}},
				},
			})
		}
	})

	records := c.BatchByParcelNumbers(context.Background(), []string{"a1", "bad", "missing", "b2"})

	// Every lookup settles; failures and not-found are dropped, not fatal.
	assert.Equal(t, int32(4), calls.Load())
	require.Len(t, records, 2)
	apns := []string{records[0].ParcelNumber, records[1].ParcelNumber}
	assert.ElementsMatch(t, []string{"A1", "B2"}, apns)
}

func TestBatchByAddressesSkipsFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/parcels/address":
			query := r.URL.Query().Get("query")
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			if query == "unresolvable" {
				_, _ = w.Write([]byte(`{"results":[]}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{"id": "rec-" + query, "score": 0.9}},
			})
		case "/parcels/rec-good":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"fields": map[string]any{"parcelnumb": "77", "address": "good"}},
				},
			})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})

	records := c.BatchByAddresses(context.Background(), []SearchQuery{
		{Text: "good"},
		{Text: "unresolvable"},
		{Text: "detail-fails"},
	})

	require.Len(t, records, 1)
	assert.Equal(t, "77", records[0].ParcelNumber)
}
