package analyzer

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/codescope/codescope/internal/types"
)

// GoAnalyzer handles the "go" category. For .go source files it runs pattern
// checks and counts imports; for go.mod manifests it parses the file with
// x/mod and reports the module's dependency surface.
type GoAnalyzer struct{}

var (
	goImportLineRegex  = regexp.MustCompile(`^\s*(?:import\s+)?(?:\w+\s+|\.\s+|_\s+)?"[^"]+"`)
	goImportBlockStart = regexp.MustCompile(`^\s*import\s*\(`)
	goBranchRegex      = regexp.MustCompile(`\b(if|for|switch|select|case)\b`)
	goPanicRegex       = regexp.MustCompile(`\bpanic\s*\(`)
	goSQLConcatRegex   = regexp.MustCompile(`(?i)"(select|insert|update|delete)\s[^"]*"\s*\+`)
	goIgnoredErrRegex  = regexp.MustCompile(`^\s*_\s*(?:,\s*\w+\s*)?=\s*\w`)
)

func (g *GoAnalyzer) Language() string { return "go" }

func (g *GoAnalyzer) Analyze(ctx context.Context, path string, content []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if filepath.Base(path) == "go.mod" {
		return g.analyzeModFile(path, content)
	}
	return g.analyzeSource(path, content)
}

// analyzeModFile parses a go.mod and reports the direct dependency count plus
// findings about local replace directives.
func (g *GoAnalyzer) analyzeModFile(path string, content []byte) (*Result, error) {
	mf, err := modfile.Parse(path, content, nil)
	if err != nil {
		return nil, err
	}

	deps := 0
	for _, req := range mf.Require {
		if !req.Indirect {
			deps++
		}
	}

	var issues []types.Issue
	for _, rep := range mf.Replace {
		// A filesystem replace target breaks builds outside the author's machine.
		if strings.HasPrefix(rep.New.Path, ".") || strings.HasPrefix(rep.New.Path, "/") {
			line := 0
			if rep.Syntax != nil {
				line = rep.Syntax.Start.Line
			}
			issues = append(issues, types.Issue{
				ID:          types.NewIssueID(types.CategoryOther, path, "local-replace", line),
				Category:    types.CategoryOther,
				Severity:    types.SeverityMedium,
				Title:       "Local replace directive",
				Description: "go.mod replaces a module with a local filesystem path",
				Suggestion:  "Drop the replace directive or point it at a published version",
				FilePath:    path,
				LineNumber:  line,
				Source:      types.SourceStatic,
				ImpactScore: types.SeverityMedium.ImpactScore(),
			})
		}
	}

	return &Result{
		Issues: issues,
		Metrics: types.FileMetrics{
			Path:        path,
			Language:    "go",
			LinesOfCode: countLines(content),
		},
		DependencyCount: deps,
	}, nil
}

func (g *GoAnalyzer) analyzeSource(path string, content []byte) (*Result, error) {
	lines := strings.Split(string(content), "\n")
	isTest := strings.HasSuffix(path, "_test.go")

	var issues []types.Issue
	deps := 0
	branches := 0
	inImportBlock := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") {
			continue
		}

		if goImportBlockStart.MatchString(line) {
			inImportBlock = true
			continue
		}
		if inImportBlock {
			if trimmed == ")" {
				inImportBlock = false
			} else if goImportLineRegex.MatchString(line) {
				deps++
			}
			continue
		}
		if strings.HasPrefix(trimmed, "import ") && goImportLineRegex.MatchString(line) {
			deps++
			continue
		}

		branches += len(goBranchRegex.FindAllString(line, -1))

		if !isTest && goPanicRegex.MatchString(line) && !strings.Contains(line, "recover") {
			issues = append(issues, types.Issue{
				ID:          types.NewIssueID(types.CategoryStyle, path, "panic-usage", i+1),
				Category:    types.CategoryStyle,
				Severity:    types.SeverityLow,
				Title:       "panic in library code",
				Description: "panic aborts the caller; errors should be returned instead",
				Suggestion:  "Return an error and let the caller decide how to fail",
				FilePath:    path,
				LineNumber:  i + 1,
				Source:      types.SourceStatic,
				ImpactScore: types.SeverityLow.ImpactScore(),
			})
		}
		if goSQLConcatRegex.MatchString(line) {
			issues = append(issues, types.Issue{
				ID:          types.NewIssueID(types.CategorySecurity, path, "sql-concat", i+1),
				Category:    types.CategorySecurity,
				Severity:    types.SeverityHigh,
				Title:       "SQL built by string concatenation",
				Description: "Concatenating values into SQL enables injection",
				Suggestion:  "Use parameterized queries with placeholder arguments",
				FilePath:    path,
				LineNumber:  i + 1,
				Source:      types.SourceStatic,
				ImpactScore: types.SeverityHigh.ImpactScore(),
			})
		}
		if !isTest && goIgnoredErrRegex.MatchString(line) && strings.Contains(line, "err") {
			issues = append(issues, types.Issue{
				ID:          types.NewIssueID(types.CategoryStyle, path, "discarded-error", i+1),
				Category:    types.CategoryStyle,
				Severity:    types.SeverityLow,
				Title:       "Discarded error value",
				Description: "An error return appears to be assigned to the blank identifier",
				Suggestion:  "Handle the error or document why it is safe to ignore",
				FilePath:    path,
				LineNumber:  i + 1,
				Source:      types.SourceStatic,
				ImpactScore: types.SeverityLow.ImpactScore(),
			})
		}
	}

	issues = append(issues, scanSecrets(path, lines)...)

	loc := countLines(content)
	complexity := 0.0
	if loc > 0 {
		complexity = float64(branches) / float64(loc) * 10
	}

	return &Result{
		Issues: issues,
		Metrics: types.FileMetrics{
			Path:            path,
			Language:        "go",
			LinesOfCode:     loc,
			ComplexityScore: complexity,
		},
		DependencyCount: deps,
	}, nil
}
