package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parcelfolio/parcelfolio/internal/config"
	"github.com/parcelfolio/parcelfolio/internal/reconcile"
	"github.com/parcelfolio/parcelfolio/internal/store"
	"github.com/parcelfolio/parcelfolio/pkg/regrid"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "parcelfolio",
	Short: "Real-estate parcel tracker",
	Long:  "Tracks real-estate parcels: enriches user records from the Regrid parcel data API, reconciles refreshes without clobbering user edits, and detects duplicates on create and import.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// appEnv holds the wired store, provider client, and engine for a command.
type appEnv struct {
	Store  store.Store
	Client regrid.Client
	Engine *reconcile.Engine
}

// Close releases the store connection.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv opens the configured store, builds the provider client, and wires
// the reconciliation engine.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	client, err := regrid.NewClient(cfg.Regrid)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			zap.L().Warn("close store", zap.Error(closeErr))
		}
		return nil, err
	}

	engine := reconcile.New(st, client, reconcile.WithChunkSize(cfg.Batch.ChunkSize))
	return &appEnv{Store: st, Client: client, Engine: engine}, nil
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	}
}
