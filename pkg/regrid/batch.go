package regrid

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parcelfolio/parcelfolio/internal/model"
)

// BatchByParcelNumbers issues all lookups concurrently and waits for every
// one to settle. Failures and not-found results are silently dropped: a batch
// of 100 with 3 failures returns 97 records and no error.
func (c *client) BatchByParcelNumbers(ctx context.Context, apns []string) []model.ParcelRecord {
	slots := make([]*model.ParcelRecord, len(apns))

	var g errgroup.Group
	for i, apn := range apns {
		g.Go(func() error {
			rec, err := c.ByParcelNumber(ctx, apn, "")
			if err != nil {
				zap.L().Debug("regrid: batch lookup failed",
					zap.String("apn", apn),
					zap.Error(err),
				)
				return nil // settle-all: one failure never cancels siblings
			}
			slots[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	records := make([]model.ParcelRecord, 0, len(apns))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// BatchByAddresses resolves each address sequentially: search, then detail
// fetch on the top candidate. Per-item failures are logged and skipped so one
// bad address does not abort the remaining items. Sequential on purpose, to
// bound concurrent load on the provider.
func (c *client) BatchByAddresses(ctx context.Context, queries []SearchQuery) []model.ParcelRecord {
	var records []model.ParcelRecord

	for _, q := range queries {
		q.Limit = 1
		candidates, err := c.Search(ctx, q)
		if err != nil {
			zap.L().Warn("regrid: batch address search failed",
				zap.String("address", q.Text),
				zap.Error(err),
			)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		rec, err := c.ByID(ctx, candidates[0].ID)
		if err != nil {
			zap.L().Warn("regrid: batch address detail fetch failed",
				zap.String("address", q.Text),
				zap.String("id", candidates[0].ID),
				zap.Error(err),
			)
			continue
		}
		if rec == nil {
			continue
		}

		records = append(records, *rec)
	}
	return records
}
