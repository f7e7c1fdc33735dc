package regrid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/internal/normalize"
	"github.com/parcelfolio/parcelfolio/internal/retry"
)

// get issues an authenticated GET and returns the response body. Rate-limit
// responses and connection failures are retried with backoff; other non-2xx
// statuses fail immediately.
func (c *client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("token", c.token)
	reqURL := c.baseURL + path + "?" + params.Encode()

	return retry.Do(ctx, c.retryCfg, path,
		func(ctx context.Context) ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "regrid: rate limit")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "regrid: build request")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, eris.Wrap(err, "regrid: request")
			}
			defer resp.Body.Close() //nolint:errcheck

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, eris.Wrap(err, "regrid: read body")
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
			}
			return body, nil
		})
}

func shouldRetry(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return retry.TransientStatus(perr.StatusCode)
	}
	return retry.IsNetworkError(err)
}

// getFeatures issues an authenticated GET and decodes the raw feature list.
func (c *client) getFeatures(ctx context.Context, path string, params url.Values) ([]map[string]any, error) {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "regrid: parse response")
	}
	return envelope.Results, nil
}

// ByParcelNumber looks up a parcel by APN via the lookup-by-number endpoint.
func (c *client) ByParcelNumber(ctx context.Context, apn, state string) (*model.ParcelRecord, error) {
	params := url.Values{"parcelnumb": {apn}}
	if state != "" {
		params.Set("state", state)
	}

	features, err := c.getFeatures(ctx, "/parcels/apn", params)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, nil
	}

	rec := normalize.Normalize(features[0])
	return &rec, nil
}

// ByID fetches full detail for a previously-returned candidate id.
func (c *client) ByID(ctx context.Context, id string) (*model.ParcelRecord, error) {
	features, err := c.getFeatures(ctx, "/parcels/"+url.PathEscape(id), url.Values{})
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, nil
	}

	rec := normalize.Normalize(features[0])
	return &rec, nil
}

// Search returns ranked candidates for a free-text address. The requested
// limit is capped at the provider maximum.
func (c *client) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	limit := q.Limit
	if limit <= 0 || limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	params := url.Values{
		"query": {q.Text},
		"limit": {strconv.Itoa(limit)},
	}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}

	body, err := c.get(ctx, "/parcels/address", params)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Results []struct {
			ID     string         `json:"id"`
			Score  float64        `json:"score"`
			Fields map[string]any `json:"fields"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "regrid: parse search response")
	}

	results := make([]SearchResult, 0, len(envelope.Results))
	for _, r := range envelope.Results {
		results = append(results, SearchResult{
			ID:     r.ID,
			Score:  r.Score,
			Record: normalize.Normalize(r.Fields),
		})
	}
	return results, nil
}
