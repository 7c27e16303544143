package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/enhance"
	"github.com/codescope/codescope/internal/progress"
	"github.com/codescope/codescope/internal/types"
)

// scriptedClient returns per-path canned responses and counts calls.
type scriptedClient struct {
	mu        sync.Mutex
	calls     int
	byPath    map[string]*enhance.Response
	errByPath map[string]error
}

func (c *scriptedClient) Enhance(ctx context.Context, req *enhance.Request) (*enhance.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	base := filepath.Base(req.Path)
	if err, ok := c.errByPath[base]; ok {
		return nil, err
	}
	if resp, ok := c.byPath[base]; ok {
		return resp, nil
	}
	return &enhance.Response{}, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// blockingClient blocks every call until its context expires.
type blockingClient struct{}

func (blockingClient) Enhance(ctx context.Context, req *enhance.Request) (*enhance.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func testConfig(root string) *Config {
	cfg := DefaultConfig()
	cfg.Root = root
	cfg.RunTimeout = 30 * time.Second
	return cfg
}

const riskyPython = `import os
import pickle

password = "hunter2secret"

def handler(data):
    result = eval(data)
    os.system("ls " + data)
    return result
`

const trivialPython = `def add(a, b):
    return a + b
`

const flakyPython = `def sub(a, b):
    return a - b
`

func TestRunThreeFileScenario(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"risky.py":   riskyPython,
		"trivial.py": trivialPython,
		"flaky.py":   flakyPython,
	})

	client := &scriptedClient{
		byPath: map[string]*enhance.Response{
			"trivial.py": {
				Truncated:      true,
				Description:    "Adds two numbers.",
				BusinessImpact: "Low - simple utility",
			},
		},
		errByPath: map[string]error{
			"flaky.py": errors.New("503 service unavailable"),
		},
	}

	engine := NewEngine(testConfig(root), client, nil)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	// The risky file has several findings, so it skips enhancement.
	assert.Equal(t, 2, client.callCount())

	assert.Equal(t, 3, result.Summary.TotalFiles)
	assert.Equal(t, 3, result.Summary.AnalyzedFiles)

	riskyMeta := result.FileMetadata[filepath.Join(root, "risky.py")]
	assert.False(t, riskyMeta.Truncated)

	trivialMeta := result.FileMetadata[filepath.Join(root, "trivial.py")]
	assert.True(t, trivialMeta.Truncated)
	assert.Equal(t, "Adds two numbers.", trivialMeta.Description)

	flakyMeta := result.FileMetadata[filepath.Join(root, "flaky.py")]
	assert.False(t, flakyMeta.Truncated)

	var enhancementWarnings int
	for _, w := range result.Warnings {
		if w.Kind == types.WarnEnhancement {
			enhancementWarnings++
			assert.Equal(t, filepath.Join(root, "flaky.py"), w.File)
		}
	}
	assert.Equal(t, 1, enhancementWarnings)
	assert.True(t, result.Summary.Degraded)

	// Risky findings kept their static severity.
	var sawCritical bool
	for _, issue := range result.Issues {
		if issue.Severity == types.SeverityCritical {
			sawCritical = true
		}
	}
	assert.True(t, sawCritical)
}

func TestRunIsDeterministicAcrossRuns(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"b.py":       riskyPython,
		"a.py":       trivialPython,
		"web/app.js": "var x = 1\nif (x == null) {}\n",
		"Dockerfile": "FROM ubuntu:latest\nRUN apt-get update\nCMD [\"app\"]\n",
	})

	run := func() *types.AnalysisResult {
		engine := NewEngine(testConfig(root), nil, nil)
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	require.Equal(t, len(first.Issues), len(second.Issues))
	for i := range first.Issues {
		assert.Equal(t, first.Issues[i].ID, second.Issues[i].ID)
		assert.Equal(t, first.Issues[i], second.Issues[i])
	}
	assert.Equal(t, first.Metrics, second.Metrics)

	// Python issues come before javascript, javascript before docker.
	lastSeen := map[string]int{}
	for i, issue := range first.Issues {
		lastSeen[filepath.Ext(issue.FilePath)] = i
	}
	if pyIdx, ok := lastSeen[".py"]; ok {
		if jsIdx, ok := lastSeen[".js"]; ok {
			assert.Less(t, pyIdx, jsIdx)
		}
	}
}

func TestRunReusesCacheForUnchangedFiles(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"trivial.py": trivialPython,
	})

	client := &scriptedClient{
		byPath: map[string]*enhance.Response{
			"trivial.py": {Truncated: true, Description: "Adds two numbers."},
		},
	}

	engine := NewEngine(testConfig(root), client, nil)

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, client.callCount())

	second, err := engine.Run(context.Background())
	require.NoError(t, err)

	// Unchanged content: no second enhancement call, same outcome.
	assert.Equal(t, 1, client.callCount())
	meta := second.FileMetadata[filepath.Join(root, "trivial.py")]
	assert.True(t, meta.Truncated)
	assert.ElementsMatch(t, first.Issues, second.Issues)

	// Progress starts over per run rather than accumulating across runs.
	snapshot := engine.Tracker().Current()
	assert.Equal(t, 1, snapshot.TotalFiles)
	assert.Equal(t, 1, snapshot.CompletedFiles)
	assert.InDelta(t, 100.0, snapshot.Percentage, 0.001)
}

func TestRunTimeoutReportsPartialResults(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a.py", "b.py", "c.py", "d.py"} {
		files[name] = trivialPython
	}
	root := writeFiles(t, files)

	cfg := testConfig(root)
	cfg.RunTimeout = 100 * time.Millisecond
	cfg.Workers = 1
	cfg.MaxInFlight = 1

	engine := NewEngine(cfg, blockingClient{}, nil)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, result.Summary.AnalyzedFiles, 4)
	assert.GreaterOrEqual(t, result.Summary.AnalyzedFiles, 1)
	assert.True(t, result.Summary.Degraded)

	var sawTimeout bool
	for _, w := range result.Warnings {
		if w.Kind == types.WarnTimeout {
			sawTimeout = true
		}
	}
	assert.True(t, sawTimeout)
}

func TestRunFailsOnMissingRoot(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "does-not-exist"))
	engine := NewEngine(cfg, nil, nil)

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, progress.StageFailed, engine.Tracker().Current().Stage)
}

func TestRunEmptyTreeSucceeds(t *testing.T) {
	engine := NewEngine(testConfig(t.TempDir()), nil, nil)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.TotalFiles)
	assert.Empty(t, result.Issues)
}

func TestRunIndexesAnalyzedFiles(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"trivial.py": trivialPython,
	})

	engine := NewEngine(testConfig(root), nil, nil)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Summary.AnalyzedFiles)

	require.Greater(t, engine.Index().Len(), 0)
	results := engine.Index().Query("add numbers", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, filepath.Join(root, "trivial.py"), results[0].Chunk.SourceFile)
}

func TestMergeKeepsHighestSeverityForDuplicateIDs(t *testing.T) {
	dup := func(severity types.Severity) types.Issue {
		return types.Issue{
			ID:          "security_abc123",
			Category:    types.CategorySecurity,
			Severity:    severity,
			Title:       "Shared secret in source",
			Source:      types.SourceStatic,
			ImpactScore: severity.ImpactScore(),
		}
	}

	result := &types.AnalysisResult{FileMetadata: make(map[string]types.FileMetadata)}
	merge(result, []*fileDelta{
		{catIdx: 0, fileIdx: 1, path: "b.py", issues: []types.Issue{dup(types.SeverityHigh)}},
		{catIdx: 0, fileIdx: 0, path: "a.py", issues: []types.Issue{
			dup(types.SeverityLow),
			{ID: "style_1", Severity: types.SeverityLow},
		}},
	})

	require.Len(t, result.Issues, 2)
	// The duplicate keeps its first position (a.py comes first in canonical
	// order) but carries the higher-severity occurrence.
	assert.Equal(t, "security_abc123", result.Issues[0].ID)
	assert.Equal(t, types.SeverityHigh, result.Issues[0].Severity)
	assert.Equal(t, types.SeverityHigh.ImpactScore(), result.Issues[0].ImpactScore)
	assert.Equal(t, "style_1", result.Issues[1].ID)
}

func TestMergeDuplicateKeepsEarlierWhenSeverityEqual(t *testing.T) {
	issue := func(desc string) types.Issue {
		return types.Issue{ID: "perf_1", Severity: types.SeverityMedium, Description: desc}
	}

	result := &types.AnalysisResult{FileMetadata: make(map[string]types.FileMetadata)}
	merge(result, []*fileDelta{
		{catIdx: 1, fileIdx: 0, path: "b.js", issues: []types.Issue{issue("later")}},
		{catIdx: 0, fileIdx: 0, path: "a.py", issues: []types.Issue{issue("earlier")}},
	})

	require.Len(t, result.Issues, 1)
	assert.Equal(t, "earlier", result.Issues[0].Description)
}

func TestProgressReachesDone(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.py": trivialPython,
		"b.py": flakyPython,
	})

	engine := NewEngine(testConfig(root), nil, nil)
	ch := engine.Tracker().Subscribe()

	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	var stages []progress.Stage
	var prevCompleted int
	for len(ch) > 0 {
		s := <-ch
		stages = append(stages, s.Stage)
		assert.GreaterOrEqual(t, s.CompletedFiles, prevCompleted)
		prevCompleted = s.CompletedFiles
	}
	require.NotEmpty(t, stages)
	assert.Equal(t, progress.StageDone, stages[len(stages)-1])
	assert.Contains(t, stages, progress.StageAnalysis)
	assert.Contains(t, stages, progress.StageMerge)
}
