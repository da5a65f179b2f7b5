package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/partners/internal/core/config"
	"github.com/vietddude/partners/internal/gateway"
	"github.com/vietddude/partners/internal/infra/cache"
	"github.com/vietddude/partners/internal/infra/storage"
	"github.com/vietddude/partners/internal/infra/storage/memory"
	"github.com/vietddude/partners/internal/infra/storage/postgres"
)

var serveSeed string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sheets gateway",
	Long: `Run the sheets REST gateway over the configured source (memory or
postgres) with the server cache tier in front of reads.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "YAML file with spreadsheets to load at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := appCfg
	if serveSeed != "" {
		cfg.Server.SeedFile = serveSeed
	}

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	backend, err := cache.OpenBackend(cfg.Cache.Server, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to open server cache: %w", err)
	}
	serverCache := cache.New(backend, cache.Config{
		TTL:  cfg.Cache.Server.TTL,
		Tier: "server",
	})
	defer func() {
		_ = serverCache.Close()
	}()

	srv := gateway.NewServer(source, serverCache, gateway.Config{})
	slog.Info("Gateway starting",
		"port", cfg.Server.Port,
		"source", source.Name(),
		"cache", backend.Name(),
		"ttl", serverCache.TTL())

	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}

// openSource builds the sheet source selected by configuration and seeds it.
func openSource(ctx context.Context, cfg *config.AppConfig) (storage.SheetSource, func(), error) {
	var (
		source storage.SheetSource
		closer = func() {}
	)

	switch cfg.Server.Source {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		db.StartMetricsCollector(ctx)
		source = postgres.NewSheetSource(db)
		closer = func() { _ = db.Close() }
		slog.Info("Using PostgreSQL sheet source")
	case "memory":
		source = memory.NewMemoryStorage()
		slog.Info("Using memory sheet source")
	default:
		return nil, nil, fmt.Errorf("unknown sheet source %q", cfg.Server.Source)
	}

	seeds, err := seedsFor(cfg)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if seeder, ok := source.(storage.Seeder); ok && len(seeds) > 0 {
		if err := seeder.Seed(ctx, seeds); err != nil {
			closer()
			return nil, nil, fmt.Errorf("failed to seed source: %w", err)
		}
		slog.Info("Seeded sheet source", "spreadsheets", len(seeds))
	}
	return source, closer, nil
}

func seedsFor(cfg *config.AppConfig) ([]storage.SpreadsheetSeed, error) {
	if cfg.Server.SeedFile != "" {
		return storage.LoadSeeds(cfg.Server.SeedFile)
	}
	if cfg.Server.Source == "memory" {
		return storage.DemoSeeds(), nil
	}
	return nil, nil
}
