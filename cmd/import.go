package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parcelfolio/parcelfolio/internal/reconcile"
	"github.com/parcelfolio/parcelfolio/internal/rowfile"
)

var (
	importFile   string
	importUser   string
	importSource string
	importLimit  int
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import properties from a CSV or XLSX file",
	Long: `Reads parcel rows from a CSV or XLSX file and creates a property for each
through the duplicate-checked create path. Rows that already exist or fail
enrichment are reported per-row; one bad row never aborts the batch.

Recognized columns: parcel_number (or apn), address, city, state, zip,
notes, tags (comma-separated).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importUser == "" {
			return eris.New("import: --user is required")
		}

		table, err := rowfile.Read(importFile)
		if err != nil {
			return eris.Wrap(err, "import: parse file")
		}
		inputs := tableToInputs(table)
		zap.L().Info("parsed import file",
			zap.String("file", importFile),
			zap.Int("rows", len(inputs)),
		)

		if importLimit > 0 && importLimit < len(inputs) {
			inputs = inputs[:importLimit]
		}

		if importDryRun {
			return json.NewEncoder(os.Stdout).Encode(inputs)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		source := importSource
		if source == "" {
			source = filepath.Base(importFile)
		}

		result, err := env.Engine.BulkCreate(ctx, importUser, source, inputs)
		if err != nil {
			return eris.Wrap(err, "import: bulk create")
		}

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "CSV or XLSX file to import (required)")
	importCmd.Flags().StringVar(&importUser, "user", "", "owning user id (required)")
	importCmd.Flags().StringVar(&importSource, "source", "", "source tag for the batch summary (default: file name)")
	importCmd.Flags().IntVar(&importLimit, "limit", 0, "max rows to import (0 = all)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse only, print rows as JSON")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// tableToInputs maps parsed rows to create inputs. "apn" is accepted as an
// alias for parcel_number.
func tableToInputs(table *rowfile.Table) []reconcile.CreateInput {
	cols := table.Index()
	if i, ok := cols["apn"]; ok {
		if _, exists := cols["parcel_number"]; !exists {
			cols["parcel_number"] = i
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	inputs := make([]reconcile.CreateInput, 0, len(table.Rows))
	for _, row := range table.Rows {
		in := reconcile.CreateInput{
			ParcelNumber: cell(row, "parcel_number"),
			Address:      cell(row, "address"),
			City:         cell(row, "city"),
			State:        cell(row, "state"),
			ZipCode:      cell(row, "zip"),
			Notes:        cell(row, "notes"),
		}
		if tags := cell(row, "tags"); tags != "" {
			for _, t := range strings.Split(tags, ",") {
				if t = strings.TrimSpace(t); t != "" {
					in.Tags = append(in.Tags, t)
				}
			}
		}
		inputs = append(inputs, in)
	}
	return inputs
}
