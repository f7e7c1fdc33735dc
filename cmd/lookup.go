package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/parcelfolio/parcelfolio/pkg/regrid"
)

var (
	lookupAPN     string
	lookupState   string
	lookupID      string
	lookupAddress string
	lookupLimit   int
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Query the parcel provider without touching the store",
	Long: `Looks up parcel data directly from the provider and prints the normalized
record(s) as JSON. Useful for checking what an import or create would see.

Exactly one of --apn, --id, or --address must be given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		given := 0
		for _, v := range []string{lookupAPN, lookupID, lookupAddress} {
			if v != "" {
				given++
			}
		}
		if given != 1 {
			return eris.New("lookup: exactly one of --apn, --id, or --address is required")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		switch {
		case lookupAPN != "":
			rec, err := env.Client.ByParcelNumber(ctx, lookupAPN, lookupState)
			if err != nil {
				return eris.Wrap(err, "lookup: by parcel number")
			}
			if rec == nil {
				return eris.New("lookup: no parcel found")
			}
			return enc.Encode(rec)
		case lookupID != "":
			rec, err := env.Client.ByID(ctx, lookupID)
			if err != nil {
				return eris.Wrap(err, "lookup: by id")
			}
			if rec == nil {
				return eris.New("lookup: no parcel found")
			}
			return enc.Encode(rec)
		default:
			results, err := env.Client.Search(ctx, regrid.SearchQuery{
				Text:  lookupAddress,
				Limit: lookupLimit,
			})
			if err != nil {
				return eris.Wrap(err, "lookup: search")
			}
			return enc.Encode(results)
		}
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupAPN, "apn", "", "parcel number to look up")
	lookupCmd.Flags().StringVar(&lookupState, "state", "", "two-letter state to scope an --apn lookup")
	lookupCmd.Flags().StringVar(&lookupID, "id", "", "provider parcel id to look up")
	lookupCmd.Flags().StringVar(&lookupAddress, "address", "", "free-text address to search")
	lookupCmd.Flags().IntVar(&lookupLimit, "limit", 5, "max results for an --address search")
	rootCmd.AddCommand(lookupCmd)
}
