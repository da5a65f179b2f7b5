package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/partners/internal/infra/cache"
)

var cacheTier string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear cached sheet data",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [prefix]",
	Short: "Delete cached entries, optionally only those under a key prefix",
	Long: `Delete cached entries. Keys look like sheets_meta:{id} and
sheet_data:{id}:{sheet}; "sheet_data:{id}:" clears every tab of a spreadsheet.

--tier server clears the gateway tier, which only persists across
processes with the redis backend.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheClear,
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheTier, "tier", "client", "cache tier: client or server")
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openTier() (*cache.Cache, error) {
	switch cacheTier {
	case "client":
		return openClientCache(appCfg)
	case "server":
		backend, err := cache.OpenBackend(appCfg.Cache.Server, appCfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to open server cache: %w", err)
		}
		return cache.New(backend, cache.Config{TTL: appCfg.Cache.Server.TTL, Tier: "server"}), nil
	default:
		return nil, fmt.Errorf("unknown cache tier %q", cacheTier)
	}
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openTier()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	n, err := c.InvalidatePrefix(cmd.Context(), prefix)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s cache entries\n", n, cacheTier)
	return nil
}
