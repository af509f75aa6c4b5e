package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search bins, SKUs and batches",
	Long: `Search matches identifiers, owned and associated codes, and words of
SKU and batch names.`,
	Example: `  inventorius search "hex nut"
  inventorius search 400000000017
  inventorius search bolt --page 2 --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: clientCommand(runSearch),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show inventory API status and totals",
	Args:  cobra.NoArgs,
	RunE:  clientCommand(runStatus),
}

var (
	searchPage  int
	searchLimit int
)

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statusCmd)

	searchCmd.Flags().IntVar(&searchPage, "page", 1, "page of results")
	searchCmd.Flags().IntVar(&searchLimit, "limit", inventory.DefaultSearchLimit, "results per page")
}

func runSearch(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	return search(ctx, c, out, strings.Join(args, " "), searchPage, searchLimit)
}

func search(ctx context.Context, c *remote.Client, out io.Writer, query string, page, limit int) error {
	res, err := c.GetSearchResults(ctx, inventory.ForPage(query, page, limit))
	if err != nil {
		return err
	}
	if !res.OK() {
		return res.Err()
	}

	results := res.Value
	if results.State.TotalNumResults == 0 {
		fmt.Fprintf(out, "no results for %q\n", query)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tNAME")
	for _, r := range results.State.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID(), r.Kind, r.Label())
	}
	w.Flush()

	fmt.Fprintf(out, "page %d of %d (%d results)\n",
		results.CurrentPage(), results.TotalPages(), results.State.TotalNumResults)
	return nil
}

func runStatus(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	status, err := c.GetStatus(ctx)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status.Err()
	}
	state := "down"
	if status.Value.IsUp {
		state = "up"
	}
	fmt.Fprintf(out, "%s  api %s, %s\n", c.Hostname(), status.Value.Version, state)

	stats, err := c.GetStats(ctx)
	if err != nil {
		return err
	}
	if !stats.OK() {
		return stats.Err()
	}
	counts := stats.Value.Counts
	fmt.Fprintf(out, "bins: %d  skus: %d  batches: %d\n", counts.Bins, counts.Skus, counts.Batches)
	return nil
}
