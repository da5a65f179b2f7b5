package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every backend candidate and show its health",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newFetchClient(appCfg)
	if err != nil {
		return err
	}

	broken := make(map[string]bool, len(appCfg.Backend.Broken))
	for _, u := range appCfg.Backend.Broken {
		broken[strings.TrimRight(strings.TrimSpace(u), "/")] = true
	}

	results := client.Probe(cmd.Context())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "#\tURL\tROLE\tHEALTHY\tLATENCY\tERROR")

	healthy := 0
	for i, res := range results {
		// Writes only ever go to the head of the list.
		role := "fallback"
		if res.URL == client.Primary() {
			role = "primary"
		}
		if broken[res.URL] {
			role += " (listed broken)"
		}
		errMsg := ""
		if res.Err != nil {
			errMsg = res.Err.Error()
		}
		if res.OK {
			healthy++
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\n",
			i+1, res.URL, role, res.OK, res.Latency.Round(time.Millisecond), errMsg)
	}
	_ = w.Flush()

	if healthy == 0 {
		return fmt.Errorf("all %d candidates failed the health probe", len(results))
	}
	return nil
}
