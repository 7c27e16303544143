package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codescope",
	Short: "Concurrent code analysis with incremental knowledge indexing",
	Long: `codescope analyzes a codebase with per-language structural analyzers,
selectively enhances findings through an AI capability, and builds a
queryable knowledge index while the analysis is still running.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
