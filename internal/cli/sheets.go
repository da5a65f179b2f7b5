package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/core/resource"
	"github.com/vietddude/partners/internal/sheets"
)

var (
	sheetsRefresh bool
	sheetsAll     bool
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "Read and edit spreadsheets through the backend",
}

var sheetsListCmd = &cobra.Command{
	Use:   "list [spreadsheet_id]",
	Short: "List the tabs of a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSheetsList,
}

var sheetsGetCmd = &cobra.Command{
	Use:   "get [spreadsheet_id] [sheet_name...]",
	Short: "Print one or more tabs",
	Long: `Print tabs of a spreadsheet. Cached data is printed at once and replaced
when a fresh copy arrives. Use --refresh to skip every cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSheetsGet,
}

var sheetsSetCellCmd = &cobra.Command{
	Use:   "set-cell [spreadsheet_id] [sheet_name] [cell] [value]",
	Short: "Set one cell, addressed in A1 notation",
	Args:  cobra.ExactArgs(4),
	RunE:  runSheetsSetCell,
}

var sheetsAppendRowCmd = &cobra.Command{
	Use:   "append-row [spreadsheet_id] [sheet_name] [values...]",
	Short: "Append a row",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSheetsAppendRow,
}

var sheetsDeleteRowCmd = &cobra.Command{
	Use:   "delete-row [spreadsheet_id] [sheet_name] [row]",
	Short: "Delete a row by its number as printed by get",
	Args:  cobra.ExactArgs(3),
	RunE:  runSheetsDeleteRow,
}

func init() {
	sheetsCmd.PersistentFlags().BoolVar(&sheetsRefresh, "refresh", false, "bypass the client and server caches")
	sheetsGetCmd.Flags().BoolVar(&sheetsAll, "all", false, "print every tab of the spreadsheet")

	sheetsCmd.AddCommand(sheetsListCmd, sheetsGetCmd, sheetsSetCellCmd, sheetsAppendRowCmd, sheetsDeleteRowCmd)
	rootCmd.AddCommand(sheetsCmd)
}

// withReader runs fn with a reader and releases it afterwards.
func withReader(fn func(r *sheets.Reader) error) error {
	r, c, err := newReader(appCfg)
	if err != nil {
		return err
	}
	defer func() {
		r.Close()
		_ = c.Close()
	}()
	return fn(r)
}

func runSheetsList(cmd *cobra.Command, args []string) error {
	return withReader(func(r *sheets.Reader) error {
		return present(cmd.Context(), cmd.OutOrStdout(), args[0], r.Meta(args[0]), printMeta)
	})
}

func runSheetsGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	id, names := args[0], args[1:]

	return withReader(func(r *sheets.Reader) error {
		if sheetsAll {
			meta, err := settle(ctx, r.Meta(id))
			if err != nil {
				return err
			}
			names = make([]string, 0, len(meta.Sheets))
			for _, tab := range meta.Sheets {
				names = append(names, tab.Title)
			}
		}

		switch len(names) {
		case 0:
			return fmt.Errorf("no sheet name given, pass one or use --all")
		case 1:
			return present(ctx, out, names[0], r.Sheet(id, names[0]), printSheet)
		}

		// Tabs are independent, so fetch them concurrently and print in order.
		data := make([]*domain.SheetData, len(names))
		g, gctx := errgroup.WithContext(ctx)
		for i, name := range names {
			g.Go(func() error {
				d, err := settle(gctx, r.Sheet(id, name))
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				data[i] = d
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, name := range names {
			_, _ = fmt.Fprintf(out, "== %s ==\n", name)
			printSheet(out, data[i])
			_, _ = fmt.Fprintln(out)
		}
		return nil
	})
}

func runSheetsSetCell(cmd *cobra.Command, args []string) error {
	id, name, cell, value := args[0], args[1], args[2], args[3]
	if _, err := domain.ParseCellRef(cell); err != nil {
		return err
	}
	return withReader(func(r *sheets.Reader) error {
		if _, err := r.UpdateCell(cmd.Context(), id, name, cell, value); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "Updated %s!%s\n", name, strings.ToUpper(cell))
		return reprint(cmd.Context(), cmd.OutOrStdout(), r.Sheet(id, name))
	})
}

func runSheetsAppendRow(cmd *cobra.Command, args []string) error {
	id, name, values := args[0], args[1], args[2:]
	return withReader(func(r *sheets.Reader) error {
		if _, err := r.AppendRow(cmd.Context(), id, name, values); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "Appended row to %s\n", name)
		return reprint(cmd.Context(), cmd.OutOrStdout(), r.Sheet(id, name))
	})
}

func runSheetsDeleteRow(cmd *cobra.Command, args []string) error {
	id, name := args[0], args[1]
	row, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid row %q: %w", args[2], err)
	}
	return withReader(func(r *sheets.Reader) error {
		if _, err := r.DeleteRow(cmd.Context(), id, name, row); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "Deleted row %d of %s\n", row, name)
		return reprint(cmd.Context(), cmd.OutOrStdout(), r.Sheet(id, name))
	})
}

// present prints cached data at once, waits for the refresh and prints the
// fresh copy when it differs. A failed refresh over cached data is a warning.
func present[T any](
	ctx context.Context,
	out io.Writer,
	label string,
	res *resource.Resource[T],
	show func(io.Writer, T),
) error {
	first := res.Load(ctx, sheetsRefresh)
	if first.HasData {
		_, _ = fmt.Fprintf(stderr, "%s (cached %s). %s\n", label, age(first.UpdatedAt), first.State.Description())
		show(out, first.Data)
	}

	final, err := res.Wait(ctx)
	if err != nil {
		return err
	}
	switch final.State {
	case resource.StateShowingFresh:
		if !first.HasData {
			show(out, final.Data)
		} else if !cmp.Equal(first.Data, final.Data) {
			_, _ = fmt.Fprintln(stderr, "Updated:")
			show(out, final.Data)
		} else {
			_, _ = fmt.Fprintln(stderr, final.State.Description())
		}
		return nil
	case resource.StateShowingCachedError:
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", final.State.Description(), final.Err)
		return nil
	default:
		return fmt.Errorf("%s: %w", label, final.Err)
	}
}

// settle waits for a load to finish and returns whatever data it ended with.
func settle[T any](ctx context.Context, res *resource.Resource[T]) (T, error) {
	res.Load(ctx, sheetsRefresh)
	snap, err := res.Wait(ctx)
	if err != nil {
		return snap.Data, err
	}
	if !snap.HasData {
		return snap.Data, snap.Err
	}
	if snap.ShowError() {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", snap.State.Description(), snap.Err)
	}
	return snap.Data, nil
}

// reprint waits for the reload triggered by a write and prints the tab.
func reprint(ctx context.Context, out io.Writer, res *resource.Resource[*domain.SheetData]) error {
	snap, err := res.Wait(ctx)
	if err != nil {
		return err
	}
	if !snap.HasData {
		return snap.Err
	}
	if snap.ShowError() {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", snap.State.Description(), snap.Err)
	}
	printSheet(out, snap.Data)
	return nil
}

func printMeta(out io.Writer, meta *domain.SheetMeta) {
	if meta.Title != "" {
		_, _ = fmt.Fprintln(out, meta.Title)
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE")
	for _, tab := range meta.Sheets {
		_, _ = fmt.Fprintf(w, "%d\t%s\n", tab.ID, tab.Title)
	}
	_ = w.Flush()
}

// printSheet prints data rows numbered by raw row, so the numbers can be
// passed to delete-row.
func printSheet(out io.Writer, d *domain.SheetData) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\t"+strings.Join(d.Headers, "\t"))
	for i, row := range d.Data {
		cells := make([]string, len(d.Headers))
		for j, h := range d.Headers {
			if v, ok := row[h]; ok && v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\n", i+1, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
}
