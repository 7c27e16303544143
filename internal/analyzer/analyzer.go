// Package analyzer wraps the per-language structural analyzers behind a
// uniform, panic-safe contract. An analyzer examines one file's content and
// returns issues plus metrics; the adapter boundary guarantees that no
// analyzer failure ever escapes into the pipeline.
package analyzer

import (
	"context"
	"fmt"

	"github.com/codescope/codescope/internal/types"
)

// Result is the output of analyzing one file.
type Result struct {
	Issues          []types.Issue
	Metrics         types.FileMetrics
	DependencyCount int

	// Degraded is set when the underlying analyzer failed and a placeholder
	// issue was substituted so the pipeline can continue.
	Degraded      bool
	FailureReason string
}

// Analyzer examines a single file of one language category.
type Analyzer interface {
	// Language returns the category this analyzer handles ("python", ...).
	Language() string

	// Analyze inspects the file content and returns findings and metrics.
	Analyze(ctx context.Context, path string, content []byte) (*Result, error)
}

// Safe wraps an analyzer so that errors and panics are converted into a
// degraded result with a single low-severity placeholder issue. Callers get
// a usable Result unconditionally; FailureReason carries the original error
// text for the warning log.
func Safe(a Analyzer) Analyzer {
	return &safeAnalyzer{inner: a}
}

type safeAnalyzer struct {
	inner Analyzer
}

func (s *safeAnalyzer) Language() string { return s.inner.Language() }

func (s *safeAnalyzer) Analyze(ctx context.Context, path string, content []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = degradedResult(s.inner.Language(), path, fmt.Sprintf("analyzer panic: %v", r))
			err = nil
		}
	}()

	result, err = s.inner.Analyze(ctx, path, content)
	if err != nil {
		return degradedResult(s.inner.Language(), path, err.Error()), nil
	}
	if result == nil {
		return degradedResult(s.inner.Language(), path, "analyzer returned no result"), nil
	}
	return result, nil
}

// degradedResult builds the placeholder substituted when an analyzer fails.
func degradedResult(language, path, reason string) *Result {
	issue := types.Issue{
		ID:          types.NewIssueID(types.CategoryOther, path, "analyzer-degraded", 0),
		Category:    types.CategoryOther,
		Severity:    types.SeverityLow,
		Title:       "Analysis incomplete",
		Description: fmt.Sprintf("The %s analyzer could not fully process this file: %s", language, reason),
		Suggestion:  "Re-run analysis after resolving the underlying problem",
		FilePath:    path,
		Source:      types.SourceStatic,
		ImpactScore: types.SeverityLow.ImpactScore(),
	}
	return &Result{
		Issues:        []types.Issue{issue},
		Metrics:       types.FileMetrics{Path: path, Language: language},
		Degraded:      true,
		FailureReason: reason,
	}
}

// Registry is the routing table from language category to analyzer. Dispatch
// is by category name, never by inspecting file contents at runtime.
type Registry struct {
	order  []string
	byLang map[string]Analyzer
}

// NewRegistry returns a registry with the built-in analyzers registered in
// declaration order, each wrapped by the panic-safe adapter.
func NewRegistry() *Registry {
	r := &Registry{byLang: make(map[string]Analyzer)}
	r.Register(&PythonAnalyzer{})
	r.Register(&JavaScriptAnalyzer{})
	r.Register(&DockerAnalyzer{})
	r.Register(&GoAnalyzer{})
	return r
}

// Register adds an analyzer to the routing table, wrapping it for safety.
// Registering the same language twice replaces the earlier entry.
func (r *Registry) Register(a Analyzer) {
	lang := a.Language()
	if _, exists := r.byLang[lang]; !exists {
		r.order = append(r.order, lang)
	}
	r.byLang[lang] = Safe(a)
}

// Get returns the analyzer for a category, or an error for unknown categories.
func (r *Registry) Get(language string) (Analyzer, error) {
	a, ok := r.byLang[language]
	if !ok {
		return nil, fmt.Errorf("no analyzer registered for language %q", language)
	}
	return a, nil
}

// Languages returns the registered categories in declaration order.
func (r *Registry) Languages() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// countLines returns the number of lines in content, matching how the
// per-language metrics report lines of code.
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}
