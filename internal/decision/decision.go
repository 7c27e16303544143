// Package decision decides, per file, whether the costly enhancement call is
// worth making, and folds the response back into the static findings. The
// rules are conservative: only simple, low-risk files are eligible for
// content truncation, and enhancement never overrides facts the static
// analyzers established.
package decision

import (
	"context"
	"fmt"

	"github.com/codescope/codescope/internal/enhance"
	"github.com/codescope/codescope/internal/types"
)

// Config holds the eligibility thresholds.
type Config struct {
	// MaxIssues is the most static issues a file may have and still be
	// considered simple enough to truncate.
	MaxIssues int
	// MaxSeverity is the highest severity allowed among a file's static
	// issues for it to stay eligible.
	MaxSeverity types.Severity
	// MaxFileChars caps the size of files considered for truncation.
	MaxFileChars int
	// MaxDependencies caps how interconnected an eligible file may be.
	MaxDependencies int
}

// DefaultConfig returns the default eligibility thresholds.
func DefaultConfig() Config {
	return Config{
		MaxIssues:       1,
		MaxSeverity:     types.SeverityMedium,
		MaxFileChars:    5000,
		MaxDependencies: 3,
	}
}

// Engine applies the eligibility rules and merges enhancement output.
type Engine struct {
	cfg    Config
	client enhance.Client
}

// NewEngine builds an engine. A nil client disables enhancement: every file
// keeps its static results without warnings.
func NewEngine(cfg Config, client enhance.Client) *Engine {
	return &Engine{cfg: cfg, client: client}
}

// Input carries one analyzed file into the decision step.
type Input struct {
	Path            string
	Language        string
	Content         []byte
	ContentHash     string
	Issues          []types.Issue
	DependencyCount int
}

// Outcome is the decision result for one file. Warning is non-nil when the
// enhancement call was attempted and failed; the Issues and Metadata then
// carry static results only.
type Outcome struct {
	Issues   []types.Issue
	Metadata types.FileMetadata
	Warning  *types.Warning
}

// Eligible reports whether a file qualifies for the enhancement call. Every
// threshold must hold: files that are already known to be complex or risky
// keep their full content and their static findings as-is.
func (e *Engine) Eligible(in *Input) bool {
	if len(in.Issues) > e.cfg.MaxIssues {
		return false
	}
	for _, issue := range in.Issues {
		if issue.Severity.Rank() > e.cfg.MaxSeverity.Rank() {
			return false
		}
	}
	if len(in.Content) >= e.cfg.MaxFileChars {
		return false
	}
	if in.DependencyCount >= e.cfg.MaxDependencies {
		return false
	}
	return true
}

// Decide produces the final issues and metadata for one file. Ineligible
// files skip the enhancement call and keep static results. For eligible
// files, a failed call degrades to static results plus a warning; the run
// never fails because enhancement did.
func (e *Engine) Decide(ctx context.Context, in *Input) *Outcome {
	meta := types.FileMetadata{
		Path:            in.Path,
		Language:        in.Language,
		ContentHash:     in.ContentHash,
		DependencyCount: in.DependencyCount,
	}

	if e.client == nil || !e.Eligible(in) {
		return &Outcome{Issues: in.Issues, Metadata: meta}
	}

	resp, err := e.client.Enhance(ctx, &enhance.Request{
		Path:            in.Path,
		Language:        in.Language,
		Content:         string(in.Content),
		Issues:          in.Issues,
		DependencyCount: in.DependencyCount,
	})
	if err != nil {
		warn := types.Warning{
			File:    in.Path,
			Kind:    types.WarnEnhancement,
			Message: fmt.Sprintf("enhancement unavailable, keeping static results: %v", err),
		}
		return &Outcome{Issues: in.Issues, Metadata: meta, Warning: &warn}
	}

	// Truncation requires a usable description to stand in for the content.
	meta.Truncated = resp.Truncated && resp.Description != ""
	meta.Description = resp.Description
	meta.BusinessImpact = resp.BusinessImpact
	meta.ArchitecturalConcerns = resp.ArchitecturalConcerns

	return &Outcome{Issues: mergeIssues(in.Issues, resp), Metadata: meta}
}

// mergeIssues applies enhanced suggestion text onto the static findings.
// Severity, category, and location stay authoritative from static analysis;
// only the advisory text is replaced. Suggestions keyed by unknown issue ids
// are dropped.
func mergeIssues(static []types.Issue, resp *enhance.Response) []types.Issue {
	if len(resp.Suggestions) == 0 {
		return static
	}
	merged := make([]types.Issue, len(static))
	copy(merged, static)
	for i := range merged {
		if suggestion, ok := resp.Suggestions[merged[i].ID]; ok && suggestion != "" {
			merged[i].Suggestion = suggestion
			merged[i].Source = types.SourceMerged
		}
	}
	return merged
}
