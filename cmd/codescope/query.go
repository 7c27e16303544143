package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/index/sqlite"
)

var (
	queryDBPath      string
	queryLimit       int
	queryInteractive bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the knowledge index from a previous analysis",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.New(queryDBPath)
		if err != nil {
			return fmt.Errorf("opening index database: %w", err)
		}
		defer store.Close()

		chunks, err := store.Load(context.Background())
		if err != nil {
			return fmt.Errorf("loading index: %w", err)
		}
		if len(chunks) == 0 {
			return fmt.Errorf("index at %s is empty, run analyze first", queryDBPath)
		}

		log := index.NewLog()
		log.Append(chunks...)

		if queryInteractive {
			return runQueryLoop(log)
		}
		if len(args) == 0 {
			return fmt.Errorf("provide query text or use --interactive")
		}
		printMatches(log, strings.Join(args, " "))
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryDBPath, "db", ".codescope/chunks.db", "SQLite index file to query")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 5, "maximum results to show")
	queryCmd.Flags().BoolVarP(&queryInteractive, "interactive", "i", false, "interactive query shell")
	rootCmd.AddCommand(queryCmd)
}

func runQueryLoop(log *index.Log) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cyan("query> "),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("%d chunks indexed. Type a query, or 'exit' to quit.\n", log.Len())

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		printMatches(log, line)
	}
}

func printMatches(log *index.Log, text string) {
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	results := log.Query(text, queryLimit)
	if len(results) == 0 {
		fmt.Println(gray("no matches"))
		return
	}

	for i, r := range results {
		c := r.Chunk
		fmt.Printf("%d. %s %s\n", i+1, green(c.SourceFile), gray(fmt.Sprintf("(chunk %d, score %.2f)", c.Ordinal, r.Score)))
		if c.Metadata.BusinessImpact != "" {
			fmt.Printf("   impact: %s\n", c.Metadata.BusinessImpact)
		}
		preview := c.Content
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		for _, line := range strings.Split(preview, "\n") {
			fmt.Printf("   %s\n", line)
		}
		fmt.Println()
	}
}
