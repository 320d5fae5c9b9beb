package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle and export the day's reports",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := a.RunCycle(ctx)
	fmt.Println("=== RADAR Fetch ===")
	fmt.Printf("Run:      %s\n", rep.RunID)
	fmt.Printf("Date:     %s\n", rep.Date)
	fmt.Printf("Saved:    %d/%d\n", rep.Saved, rep.Intended)
	fmt.Printf("Errors:   %d\n", rep.Errors)
	fmt.Printf("USD/BRL:  %.4f\n", rep.FXRate)
	fmt.Printf("Duration: %s\n", rep.Duration)
	if rep.Snapshot != "" {
		fmt.Printf("Snapshot: %s\n", rep.Snapshot)
	}
	return err
}
