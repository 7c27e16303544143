package analyzer

import (
	"context"
	"regexp"
	"strings"

	"github.com/codescope/codescope/internal/types"
)

// JavaScriptAnalyzer covers JavaScript and TypeScript files with pattern
// based checks for injection sinks, legacy constructs, and loose equality.
type JavaScriptAnalyzer struct{}

var (
	jsImportRegex = regexp.MustCompile(`^\s*(import\s|const\s+.*=\s*require\(|require\()`)
	jsBranchRegex = regexp.MustCompile(`\b(if|for|while|switch|catch)\s*\(`)

	jsChecks = []struct {
		pattern  *regexp.Regexp
		rule     string
		category types.Category
		severity types.Severity
		title    string
		desc     string
		fix      string
	}{
		{
			pattern:  regexp.MustCompile(`\beval\s*\(`),
			rule:     "eval-usage",
			category: types.CategorySecurity,
			severity: types.SeverityCritical,
			title:    "Use of eval()",
			desc:     "eval() executes arbitrary strings as code and enables injection attacks",
			fix:      "Remove eval(); use JSON.parse or explicit logic instead",
		},
		{
			pattern:  regexp.MustCompile(`\.innerHTML\s*=`),
			rule:     "inner-html",
			category: types.CategorySecurity,
			severity: types.SeverityHigh,
			title:    "Direct innerHTML assignment",
			desc:     "Assigning to innerHTML with untrusted data enables cross-site scripting",
			fix:      "Use textContent, or sanitize the markup before insertion",
		},
		{
			pattern:  regexp.MustCompile(`document\.write\s*\(`),
			rule:     "document-write",
			category: types.CategorySecurity,
			severity: types.SeverityMedium,
			title:    "Use of document.write",
			desc:     "document.write can inject unsanitized content and blocks rendering",
			fix:      "Manipulate the DOM through createElement/append instead",
		},
		{
			pattern:  regexp.MustCompile(`\bnew Function\s*\(`),
			rule:     "function-constructor",
			category: types.CategorySecurity,
			severity: types.SeverityHigh,
			title:    "Function constructor",
			desc:     "new Function compiles strings into code, same risk class as eval",
			fix:      "Replace with a statically defined function",
		},
		{
			pattern:  regexp.MustCompile(`(^|[^=!<>])==[^=]`),
			rule:     "loose-equality",
			category: types.CategoryStyle,
			severity: types.SeverityLow,
			title:    "Loose equality comparison",
			desc:     "== performs type coercion and can compare unequal types as equal",
			fix:      "Use === / !== for strict comparison",
		},
		{
			pattern:  regexp.MustCompile(`^\s*var\s+\w`),
			rule:     "var-declaration",
			category: types.CategoryStyle,
			severity: types.SeverityLow,
			title:    "var declaration",
			desc:     "var is function-scoped and hoisted, which causes subtle bugs",
			fix:      "Use let or const",
		},
	}
)

func (j *JavaScriptAnalyzer) Language() string { return "javascript" }

func (j *JavaScriptAnalyzer) Analyze(ctx context.Context, path string, content []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")

	var issues []types.Issue
	deps := 0
	branches := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") {
			continue
		}
		if jsImportRegex.MatchString(line) {
			deps++
		}
		branches += len(jsBranchRegex.FindAllString(line, -1))

		for _, check := range jsChecks {
			if check.pattern.MatchString(line) {
				issues = append(issues, types.Issue{
					ID:          types.NewIssueID(check.category, path, check.rule, i+1),
					Category:    check.category,
					Severity:    check.severity,
					Title:       check.title,
					Description: check.desc,
					Suggestion:  check.fix,
					FilePath:    path,
					LineNumber:  i + 1,
					Source:      types.SourceStatic,
					ImpactScore: check.severity.ImpactScore(),
				})
			}
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
			Language:        "javascript",
			LinesOfCode:     loc,
			ComplexityScore: complexity,
		},
		DependencyCount: deps,
	}, nil
}
