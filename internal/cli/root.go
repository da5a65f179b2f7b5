package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/partners/internal/core/config"
)

var (
	cfgPath string
	isDebug bool

	// appCfg is loaded once by the root pre-run hook.
	appCfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Partners portal sheets gateway and client",
	Long: `portal serves the partners sheets API and reads it resiliently.

The client commands try every configured backend in order, retry transient
failures with backoff and show cached data while a fresh copy loads.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return err
	}
	appCfg = cfg

	// Setup logging
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return nil
}
