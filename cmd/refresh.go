package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/internal/store"
)

var (
	refreshUser string
	refreshAll  bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [property-id...]",
	Short: "Re-pull provider data for stored properties",
	Long: `Refreshes provider-derived fields for the given property ids, or for every
property owned by --user with --all. User-authored fields (notes, tags,
insurance, maintenance) are never touched. Properties without a parcel
number cannot be refreshed and are reported as skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if refreshUser == "" {
			return eris.New("refresh: --user is required")
		}
		if len(args) == 0 && !refreshAll {
			return eris.New("refresh: give property ids or --all")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if refreshAll {
			records, err := env.Store.List(ctx, refreshUser, store.Filter{})
			if err != nil {
				return eris.Wrap(err, "refresh: list properties")
			}
			ids = ids[:0]
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
		}

		type rowResult struct {
			ID      string                `json:"id"`
			Record  *model.PropertyRecord `json:"record,omitempty"`
			Skipped string                `json:"skipped,omitempty"`
		}

		results := make([]rowResult, 0, len(ids))
		for _, id := range ids {
			rec, err := env.Engine.Refresh(ctx, id, refreshUser)
			if err != nil {
				results = append(results, rowResult{ID: id, Skipped: err.Error()})
				continue
			}
			results = append(results, rowResult{ID: id, Record: rec})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshUser, "user", "", "owning user id (required)")
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every property owned by --user")
	rootCmd.AddCommand(refreshCmd)
}
