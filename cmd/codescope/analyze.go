package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/enhance"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/index/sqlite"
	"github.com/codescope/codescope/internal/progress"
	"github.com/codescope/codescope/internal/types"
	"github.com/codescope/codescope/internal/workflow"
)

var (
	analyzeTimeout   string
	analyzeDBPath    string
	analyzeWorkers   int
	analyzeNoEnhance bool
	analyzeQuiet     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Run a full analysis over a directory or file",
	Long: `Discover analyzable files under the target path, run the per-language
analyzers concurrently, enhance simple files through the AI capability,
and build the knowledge index. Partial failures degrade the run instead
of aborting it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		cfg, err := workflow.LoadConfigFile(root)
		if err != nil {
			return err
		}
		if analyzeTimeout != "" {
			timeout, err := time.ParseDuration(analyzeTimeout)
			if err != nil {
				return fmt.Errorf("invalid --timeout: %w", err)
			}
			cfg.RunTimeout = timeout
		}
		if analyzeWorkers > 0 {
			cfg.Workers = analyzeWorkers
		}
		if analyzeDBPath != "" {
			cfg.DBPath = analyzeDBPath
		}
		if analyzeNoEnhance {
			cfg.EnhancementEnabled = false
		}

		client := buildEnhancementClient(cfg)

		var store index.Store
		if cfg.DBPath != "" {
			s, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening index database: %w", err)
			}
			defer s.Close()
			store = s
		}

		engine := workflow.NewEngine(cfg, client, store)

		stop := make(chan struct{})
		if !analyzeQuiet {
			go streamProgress(engine.Tracker().Subscribe(), stop)
		}

		result, runErr := engine.Run(context.Background())
		close(stop)

		if result != nil {
			printResult(result)
		}
		return runErr
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTimeout, "timeout", "", "overall run timeout (e.g. 5m)")
	analyzeCmd.Flags().StringVar(&analyzeDBPath, "db", "", "persist index chunks to this SQLite file")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "analysis workers per language")
	analyzeCmd.Flags().BoolVar(&analyzeNoEnhance, "no-enhance", false, "skip AI enhancement, static analysis only")
	analyzeCmd.Flags().BoolVar(&analyzeQuiet, "quiet", false, "suppress live progress output")
	rootCmd.AddCommand(analyzeCmd)
}

// buildEnhancementClient returns nil when enhancement is off or no API key
// is available; the engine then runs static-only.
func buildEnhancementClient(cfg *workflow.Config) enhance.Client {
	if !cfg.EnhancementEnabled {
		return nil
	}
	client, err := enhance.NewAnthropicClient(enhance.Config{Model: cfg.Model})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enhancement disabled: %v\n", err)
		return nil
	}
	return client
}

func streamProgress(ch <-chan progress.Snapshot, stop <-chan struct{}) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	for {
		select {
		case s := <-ch:
			if s.Stage != progress.StageAnalysis {
				continue
			}
			eta := ""
			if s.EstimatedRemaining > 0 {
				eta = fmt.Sprintf(" (~%v left)", s.EstimatedRemaining.Round(time.Second))
			}
			fmt.Printf("\r%s", gray(fmt.Sprintf("analyzing %d/%d files, %d issues%s   ",
				s.CompletedFiles, s.TotalFiles, s.IssuesFound, eta)))
		case <-stop:
			fmt.Print("\r")
			return
		}
	}
}

var severityColors = map[types.Severity]*color.Color{
	types.SeverityCritical: color.New(color.FgRed, color.Bold),
	types.SeverityHigh:     color.New(color.FgRed),
	types.SeverityMedium:   color.New(color.FgYellow),
	types.SeverityLow:      color.New(color.FgHiBlack),
}

func printResult(result *types.AnalysisResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Analysis Results ==="))
	fmt.Printf("Run:      %s\n", result.RunID)
	fmt.Printf("Files:    %d analyzed of %d discovered\n",
		result.Summary.AnalyzedFiles, result.Summary.TotalFiles)
	fmt.Printf("Issues:   %d\n", result.Summary.TotalIssues)
	fmt.Printf("Duration: %v\n", result.Summary.Duration.Round(time.Millisecond))
	if result.Summary.Degraded {
		fmt.Printf("Status:   %s\n", yellow("completed with warnings"))
	}
	fmt.Println()

	// Highest severity first within the report.
	issues := make([]types.Issue, len(result.Issues))
	copy(issues, result.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() > issues[j].Severity.Rank()
	})

	for _, issue := range issues {
		sevColor, ok := severityColors[issue.Severity]
		if !ok {
			sevColor = color.New(color.Reset)
		}
		location := issue.FilePath
		if issue.LineNumber > 0 {
			location = fmt.Sprintf("%s:%d", issue.FilePath, issue.LineNumber)
		}
		fmt.Printf("%s %s %s\n", sevColor.Sprintf("[%s]", issue.Severity), issue.Title, gray(location))
		if issue.Suggestion != "" {
			fmt.Printf("  %s\n", issue.Suggestion)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\n%s\n", yellow("Warnings:"))
		for _, w := range result.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}
}
