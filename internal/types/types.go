// Package types defines the shared data model for the analysis engine:
// issues, per-file metadata, metrics, warnings, and the aggregate result.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Severity is the ordered severity scale for issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of a severity (low < medium < high < critical).
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ImpactScore maps a severity to a 0-10 impact score used for ranking.
func (s Severity) ImpactScore() float64 {
	switch s {
	case SeverityLow:
		return 2.5
	case SeverityMedium:
		return 5.0
	case SeverityHigh:
		return 7.5
	case SeverityCritical:
		return 10.0
	default:
		return 0
	}
}

// Category classifies what kind of problem an issue describes.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryComplexity  Category = "complexity"
	CategoryDuplication Category = "duplication"
	CategoryStyle       Category = "style"
	CategoryOther       Category = "other"
)

// IssueSource tracks the provenance of an issue through the pipeline.
type IssueSource string

const (
	// SourceStatic marks issues produced by a structural analyzer only.
	SourceStatic IssueSource = "static"
	// SourceEnhanced marks issues newly produced by the enhancement capability.
	SourceEnhanced IssueSource = "enhanced"
	// SourceMerged marks static issues whose text was enriched by enhancement.
	SourceMerged IssueSource = "merged"
)

// Issue is a single finding against a file.
type Issue struct {
	// ID is stable across runs: derived from file path, rule, and location.
	ID          string      `json:"id"`
	Category    Category    `json:"category"`
	Severity    Severity    `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Suggestion  string      `json:"suggestion"`
	FilePath    string      `json:"file_path"`
	LineNumber  int         `json:"line_number,omitempty"` // 0 means unknown
	Source      IssueSource `json:"source"`
	ImpactScore float64     `json:"impact_score"`
}

// NewIssueID derives a stable issue identifier from the file path, the rule
// that fired, and the location. The same finding always gets the same ID, so
// duplicate findings can be matched at merge time.
func NewIssueID(category Category, filePath, rule string, line int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", filePath, rule, line)))
	return fmt.Sprintf("%s_%s", category, hex.EncodeToString(h[:])[:10])
}

// FileMetadata is the per-file decision record. It is created when a file
// enters the decision engine and is immutable once the decision is committed.
type FileMetadata struct {
	Path        string `json:"path"`
	Language    string `json:"language"`
	ContentHash string `json:"content_hash"`

	// Truncated is true only when Description is non-empty: a file is never
	// truncated on the strength of an empty description.
	Truncated             bool     `json:"truncated"`
	Description           string   `json:"description"`
	BusinessImpact        string   `json:"business_impact"`
	ArchitecturalConcerns []string `json:"architectural_concerns"`

	DependencyCount int `json:"dependency_count"`
}

// FileMetrics holds cheap structural measurements for one file.
type FileMetrics struct {
	Path            string  `json:"path"`
	Language        string  `json:"language"`
	LinesOfCode     int     `json:"lines_of_code"`
	ComplexityScore float64 `json:"complexity_score"`
}

// WarningKind identifies which stage produced a non-fatal error.
type WarningKind string

const (
	WarnAnalyzer    WarningKind = "analyzer"
	WarnEnhancement WarningKind = "enhancement"
	WarnIndex       WarningKind = "index"
	WarnTimeout     WarningKind = "timeout"
)

// Warning records a non-fatal error encountered during a run. Warnings are
// reported alongside issues so consumers can tell clean analysis from
// degraded analysis.
type Warning struct {
	File    string      `json:"file,omitempty"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.File == "" {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.File, w.Message)
}

// Summary aggregates headline numbers for a completed run.
type Summary struct {
	TotalFiles    int              `json:"total_files"`
	AnalyzedFiles int              `json:"analyzed_files"`
	TotalIssues   int              `json:"total_issues"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByCategory    map[Category]int `json:"by_category"`
	Duration      time.Duration    `json:"duration"`
	Degraded      bool             `json:"degraded"` // true when any warnings were recorded
}

// AnalysisResult is the aggregate emitted once a run reaches its terminal
// state. Partial completion (timeout, per-file failures) is still reported
// here as success-with-warnings.
type AnalysisResult struct {
	RunID        string                  `json:"run_id"`
	Issues       []Issue                 `json:"issues"`
	FileMetadata map[string]FileMetadata `json:"file_metadata"`
	Metrics      []FileMetrics           `json:"metrics"`
	Warnings     []Warning               `json:"warnings"`
	Summary      Summary                 `json:"summary"`
}

// Summarize rebuilds the Summary block from the result's issues and warnings.
func (r *AnalysisResult) Summarize(totalFiles int, duration time.Duration) {
	s := Summary{
		TotalFiles:    totalFiles,
		AnalyzedFiles: len(r.FileMetadata),
		TotalIssues:   len(r.Issues),
		BySeverity:    make(map[Severity]int),
		ByCategory:    make(map[Category]int),
		Duration:      duration,
		Degraded:      len(r.Warnings) > 0,
	}
	for _, issue := range r.Issues {
		s.BySeverity[issue.Severity]++
		s.ByCategory[issue.Category]++
	}
	r.Summary = s
}

// HashContent returns the content hash used for cache keys and metadata.
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// JoinConcerns renders architectural concerns as a single display string.
func JoinConcerns(concerns []string) string {
	return strings.Join(concerns, ", ")
}
