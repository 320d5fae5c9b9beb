package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/scoring"
	"github.com/spf13/cobra"
)

var scoreJSON bool

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print the watchlist and avoid list from the latest rows",
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	a, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.Quotes.Latest(context.Background())
	if err != nil {
		return err
	}
	equities := rows[:0]
	for _, r := range rows {
		if r.Category.IsEquity() {
			equities = append(equities, r)
		}
	}
	if len(equities) == 0 {
		return core.WrapError(core.ErrNoData, fmt.Errorf("no equity rows, run fetch first"))
	}

	res := scoring.Build(equities, a.APIDependencies().Scoring)
	if scoreJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printEntries("Watchlist", res.Watchlist)
	fmt.Println()
	printEntries("Avoid", res.AvoidList)
	return nil
}

func printEntries(title string, entries []scoring.Entry) {
	fmt.Printf("=== %s (%d) ===\n", title, len(entries))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tSCORE\tREASONS\tRISKS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%+.1f\t%s\t%s\n", e.Ticker, e.Score,
			strings.Join(e.Reasons, ","), strings.Join(e.RiskFlags, ","))
	}
	w.Flush()
}
