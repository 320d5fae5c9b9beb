package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the markdown report, digest and brief from stored rows",
	RunE:  runReport,
}

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Generate the LLM brief for the latest rows and print it",
	RunE:  runBrief,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(briefCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.Reports.Export(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Markdown: %s\n", files.Markdown)
	fmt.Printf("Digest:   %s\n", files.Digest)
	if files.Brief != "" {
		fmt.Printf("Brief:    %s\n", files.Brief)
	}
	return nil
}

func runBrief(cmd *cobra.Command, args []string) error {
	a, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.Reports.Brief(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}
