package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/codescope/codescope/internal/types"
)

// PythonAnalyzer performs lightweight structural analysis of Python source:
// dangerous call patterns, hardcoded secrets, oversized functions, nested
// loops, and import counting.
type PythonAnalyzer struct{}

var (
	pyImportRegex = regexp.MustCompile(`^\s*(import\s+\w|from\s+\w)`)
	pyDefRegex    = regexp.MustCompile(`^(\s*)def\s+(\w+)`)
	pyForRegex    = regexp.MustCompile(`^(\s*)for\s+`)
	pyBranchRegex = regexp.MustCompile(`^\s*(if|elif|for|while|except|with)\b`)

	// Dangerous call patterns and the rule each one maps to.
	pyDangerousCalls = []struct {
		pattern  *regexp.Regexp
		rule     string
		severity types.Severity
		title    string
		desc     string
		fix      string
	}{
		{
			pattern:  regexp.MustCompile(`\beval\s*\(`),
			rule:     "eval-usage",
			severity: types.SeverityCritical,
			title:    "Use of eval()",
			desc:     "eval() executes arbitrary code and is a common injection vector",
			fix:      "Replace eval() with ast.literal_eval() or explicit parsing",
		},
		{
			pattern:  regexp.MustCompile(`\bexec\s*\(`),
			rule:     "exec-usage",
			severity: types.SeverityCritical,
			title:    "Use of exec()",
			desc:     "exec() executes arbitrary code and is a common injection vector",
			fix:      "Restructure the code so dynamic execution is not needed",
		},
		{
			pattern:  regexp.MustCompile(`os\.system\s*\(`),
			rule:     "os-system",
			severity: types.SeverityHigh,
			title:    "Shell command via os.system",
			desc:     "os.system passes its argument to a shell, enabling command injection",
			fix:      "Use subprocess.run with an argument list and shell=False",
		},
		{
			pattern:  regexp.MustCompile(`shell\s*=\s*True`),
			rule:     "subprocess-shell",
			severity: types.SeverityHigh,
			title:    "subprocess with shell=True",
			desc:     "shell=True interprets the command through a shell, enabling command injection",
			fix:      "Pass the command as an argument list with shell=False",
		},
		{
			pattern:  regexp.MustCompile(`pickle\.loads?\s*\(`),
			rule:     "pickle-load",
			severity: types.SeverityMedium,
			title:    "Unsafe deserialization with pickle",
			desc:     "Unpickling untrusted data can execute arbitrary code",
			fix:      "Use json or another data-only format for untrusted input",
		},
	}

	// Assignments that look like embedded credentials.
	secretAssignRegex = regexp.MustCompile(`(?i)\b(password|passwd|secret|api[_-]?key|token|auth[_-]?key)\s*[:=]\s*["'][^"']{6,}["']`)
	secretPlaceholder = regexp.MustCompile(`(?i)(os\.getenv|os\.environ|env\[|\$\{|<[^>]+>|xxx+|changeme|example|placeholder|your[_-])`)
)

func (p *PythonAnalyzer) Language() string { return "python" }

func (p *PythonAnalyzer) Analyze(ctx context.Context, path string, content []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := string(content)
	lines := strings.Split(text, "\n")

	var issues []types.Issue
	issues = append(issues, scanDangerousCalls(path, lines)...)
	issues = append(issues, scanSecrets(path, lines)...)
	issues = append(issues, p.scanFunctionLength(path, lines)...)
	issues = append(issues, p.scanNestedLoops(path, lines)...)

	deps := 0
	branches := 0
	for _, line := range lines {
		if pyImportRegex.MatchString(line) {
			deps++
		}
		if pyBranchRegex.MatchString(line) {
			branches++
		}
	}

	loc := countLines(content)
	complexity := 0.0
	if loc > 0 {
		complexity = float64(branches) / float64(loc) * 10
	}

	return &Result{
		Issues: issues,
		Metrics: types.FileMetrics{
			Path:            path,
			Language:        "python",
			LinesOfCode:     loc,
			ComplexityScore: complexity,
		},
		DependencyCount: deps,
	}, nil
}

// scanDangerousCalls flags known-dangerous call patterns line by line.
func scanDangerousCalls(path string, lines []string) []types.Issue {
	var issues []types.Issue
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, dc := range pyDangerousCalls {
			if dc.pattern.MatchString(line) {
				issues = append(issues, types.Issue{
					ID:          types.NewIssueID(types.CategorySecurity, path, dc.rule, i+1),
					Category:    types.CategorySecurity,
					Severity:    dc.severity,
					Title:       dc.title,
					Description: dc.desc,
					Suggestion:  dc.fix,
					FilePath:    path,
					LineNumber:  i + 1,
					Source:      types.SourceStatic,
					ImpactScore: dc.severity.ImpactScore(),
				})
			}
		}
	}
	return issues
}

// scanSecrets flags assignments that look like hardcoded credentials,
// skipping obvious placeholders and environment lookups.
func scanSecrets(path string, lines []string) []types.Issue {
	var issues []types.Issue
	for i, line := range lines {
		if !secretAssignRegex.MatchString(line) || secretPlaceholder.MatchString(line) {
			continue
		}
		issues = append(issues, types.Issue{
			ID:          types.NewIssueID(types.CategorySecurity, path, "hardcoded-secret", i+1),
			Category:    types.CategorySecurity,
			Severity:    types.SeverityCritical,
			Title:       "Hardcoded credential",
			Description: "A credential appears to be embedded directly in source code",
			Suggestion:  "Move the value to an environment variable or secret manager",
			FilePath:    path,
			LineNumber:  i + 1,
			Source:      types.SourceStatic,
			ImpactScore: types.SeverityCritical.ImpactScore(),
		})
	}
	return issues
}

// scanFunctionLength approximates function size from indentation: a def
// owns every following line indented deeper than itself.
func (p *PythonAnalyzer) scanFunctionLength(path string, lines []string) []types.Issue {
	const maxFunctionLines = 50

	var issues []types.Issue
	for i, line := range lines {
		m := pyDefRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		name := m[2]

		length := 0
		for j := i + 1; j < len(lines); j++ {
			next := lines[j]
			if strings.TrimSpace(next) == "" {
				length++
				continue
			}
			if leadingSpaces(next) <= indent {
				break
			}
			length++
		}

		if length > maxFunctionLines {
			severity := types.SeverityMedium
			if length > maxFunctionLines*2 {
				severity = types.SeverityHigh
			}
			issues = append(issues, types.Issue{
				ID:          types.NewIssueID(types.CategoryComplexity, path, "long-function", i+1),
				Category:    types.CategoryComplexity,
				Severity:    severity,
				Title:       fmt.Sprintf("Oversized function %q", name),
				Description: fmt.Sprintf("Function %q spans %d lines", name, length),
				Suggestion:  "Consider breaking this function into smaller, more focused functions",
				FilePath:    path,
				LineNumber:  i + 1,
				Source:      types.SourceStatic,
				ImpactScore: severity.ImpactScore(),
			})
		}
	}
	return issues
}

// scanNestedLoops reports a for loop directly containing another for loop at
// deeper indentation. One report per outer loop.
func (p *PythonAnalyzer) scanNestedLoops(path string, lines []string) []types.Issue {
	var issues []types.Issue
	for i, line := range lines {
		m := pyForRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])

		for j := i + 1; j < len(lines); j++ {
			next := lines[j]
			if strings.TrimSpace(next) == "" {
				continue
			}
			if leadingSpaces(next) <= indent {
				break
			}
			if inner := pyForRegex.FindStringSubmatch(next); inner != nil && len(inner[1]) > indent {
				issues = append(issues, types.Issue{
					ID:          types.NewIssueID(types.CategoryPerformance, path, "nested-loops", i+1),
					Category:    types.CategoryPerformance,
					Severity:    types.SeverityMedium,
					Title:       "Nested loops detected",
					Description: "Nested loops can impact performance",
					Suggestion:  "Consider optimizing the algorithm or using more efficient data structures",
					FilePath:    path,
					LineNumber:  i + 1,
					Source:      types.SourceStatic,
					ImpactScore: types.SeverityMedium.ImpactScore(),
				})
				break
			}
		}
	}
	return issues
}

func leadingSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}
