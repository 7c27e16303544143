package analyzer

import (
	"context"
	"regexp"
	"strings"

	"github.com/codescope/codescope/internal/types"
)

// DockerAnalyzer checks Dockerfiles for security and best-practice problems:
// root execution, unpinned base images, ADD misuse, and missing health checks.
type DockerAnalyzer struct{}

var (
	dockerUserRegex  = regexp.MustCompile(`(?m)^\s*USER\s+`)
	dockerFromRegex  = regexp.MustCompile(`(?i)^\s*FROM\s+(\S+)`)
	dockerRunRegex   = regexp.MustCompile(`(?i)^\s*RUN\s+`)
	dockerAddRegex   = regexp.MustCompile(`(?i)^\s*ADD\s+`)
	dockerCmdRegex   = regexp.MustCompile(`(?mi)^\s*(ENTRYPOINT|CMD)\s+`)
	dockerCheckRegex = regexp.MustCompile(`(?mi)^\s*HEALTHCHECK\s+`)
)

func (d *DockerAnalyzer) Language() string { return "docker" }

func (d *DockerAnalyzer) Analyze(ctx context.Context, path string, content []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := string(content)
	lines := strings.Split(text, "\n")

	var issues []types.Issue
	deps := 0 // base images count as dependencies
	runCount := 0

	if !dockerUserRegex.MatchString(text) {
		issues = append(issues, types.Issue{
			ID:          types.NewIssueID(types.CategorySecurity, path, "root-user", 1),
			Category:    types.CategorySecurity,
			Severity:    types.SeverityMedium,
			Title:       "Container runs as root",
			Description: "No USER directive found, so the container runs as root",
			Suggestion:  "Add a USER directive with a non-root user",
			FilePath:    path,
			LineNumber:  1,
			Source:      types.SourceStatic,
			ImpactScore: types.SeverityMedium.ImpactScore(),
		})
	}

	for i, line := range lines {
		if m := dockerFromRegex.FindStringSubmatch(line); m != nil {
			deps++
			image := m[1]
			if strings.HasSuffix(image, ":latest") || !strings.Contains(image, ":") {
				issues = append(issues, types.Issue{
					ID:          types.NewIssueID(types.CategorySecurity, path, "unpinned-base-image", i+1),
					Category:    types.CategorySecurity,
					Severity:    types.SeverityMedium,
					Title:       "Unpinned base image",
					Description: "Base image uses latest or no tag, so builds are not reproducible",
					Suggestion:  "Pin the base image to a specific version tag or digest",
					FilePath:    path,
					LineNumber:  i + 1,
					Source:      types.SourceStatic,
					ImpactScore: types.SeverityMedium.ImpactScore(),
				})
			}
		}
		if dockerRunRegex.MatchString(line) {
			runCount++
		}
		if dockerAddRegex.MatchString(line) && !strings.Contains(line, "http") {
			issues = append(issues, types.Issue{
				ID:          types.NewIssueID(types.CategoryStyle, path, "add-vs-copy", i+1),
				Category:    types.CategoryStyle,
				Severity:    types.SeverityLow,
				Title:       "ADD used where COPY suffices",
				Description: "ADD has implicit archive extraction; COPY is more predictable for local files",
				Suggestion:  "Replace ADD with COPY for local files",
				FilePath:    path,
				LineNumber:  i + 1,
				Source:      types.SourceStatic,
				ImpactScore: types.SeverityLow.ImpactScore(),
			})
		}
	}

	if !dockerCmdRegex.MatchString(text) {
		issues = append(issues, types.Issue{
			ID:          types.NewIssueID(types.CategoryOther, path, "missing-entrypoint", len(lines)),
			Category:    types.CategoryOther,
			Severity:    types.SeverityMedium,
			Title:       "Missing ENTRYPOINT or CMD",
			Description: "Neither ENTRYPOINT nor CMD is declared, so the container has no default command",
			Suggestion:  "Add an ENTRYPOINT or CMD instruction",
			FilePath:    path,
			LineNumber:  len(lines),
			Source:      types.SourceStatic,
			ImpactScore: types.SeverityMedium.ImpactScore(),
		})
	}

	if !dockerCheckRegex.MatchString(text) && dockerCmdRegex.MatchString(text) {
		issues = append(issues, types.Issue{
			ID:          types.NewIssueID(types.CategoryStyle, path, "missing-healthcheck", 1),
			Category:    types.CategoryStyle,
			Severity:    types.SeverityLow,
			Title:       "Missing HEALTHCHECK",
			Description: "Long-running containers benefit from a HEALTHCHECK instruction",
			Suggestion:  "Add a HEALTHCHECK so orchestrators can detect unhealthy containers",
			FilePath:    path,
			LineNumber:  1,
			Source:      types.SourceStatic,
			ImpactScore: types.SeverityLow.ImpactScore(),
		})
	}

	// Many RUN layers without && chaining usually means wasted image layers.
	if runCount > 3 {
		issues = append(issues, types.Issue{
			ID:          types.NewIssueID(types.CategoryPerformance, path, "excess-layers", 1),
			Category:    types.CategoryPerformance,
			Severity:    types.SeverityLow,
			Title:       "Too many image layers",
			Description: "Multiple RUN instructions create unnecessary image layers",
			Suggestion:  "Combine related RUN instructions with &&",
			FilePath:    path,
			LineNumber:  1,
			Source:      types.SourceStatic,
			ImpactScore: types.SeverityLow.ImpactScore(),
		})
	}

	return &Result{
		Issues: issues,
		Metrics: types.FileMetrics{
			Path:        path,
			Language:    "docker",
			LinesOfCode: countLines(content),
		},
		DependencyCount: deps,
	}, nil
}
