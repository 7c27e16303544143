// Package workflow orchestrates a full analysis run: discovery, strategy
// selection, concurrent per-language analysis, deterministic merge, and the
// final index drain. Per-file work produces immutable deltas; shared state
// is only folded together in the single-threaded merge step.
package workflow

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codescope/codescope/internal/analyzer"
	"github.com/codescope/codescope/internal/cache"
	"github.com/codescope/codescope/internal/decision"
	"github.com/codescope/codescope/internal/discovery"
	"github.com/codescope/codescope/internal/enhance"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/progress"
	"github.com/codescope/codescope/internal/types"
)

// Engine runs analysis workflows. One engine can serve multiple sequential
// runs; the cache carries over so unchanged files skip re-analysis.
type Engine struct {
	cfg      *Config
	registry *analyzer.Registry
	decider  *decision.Engine
	cache    *cache.Cache
	tracker  *progress.Tracker
	log      *index.Log
	store    index.Store
}

// NewEngine builds an engine. client may be nil to disable enhancement;
// store may be nil to keep the index in memory only.
func NewEngine(cfg *Config, client enhance.Client, store index.Store) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.EnhancementEnabled {
		client = nil
	}
	return &Engine{
		cfg:      cfg,
		registry: analyzer.NewRegistry(),
		decider:  decision.NewEngine(cfg.Decision, client),
		cache:    cache.New(),
		tracker:  progress.NewTracker(),
		log:      index.NewLog(),
		store:    store,
	}
}

// Tracker exposes the progress tracker for subscribers.
func (e *Engine) Tracker() *progress.Tracker { return e.tracker }

// Index exposes the in-memory index, queryable while a run is executing.
func (e *Engine) Index() *index.Log { return e.log }

// fileDelta is the immutable output of processing one file. Branch workers
// produce deltas; only the merge step reads them.
type fileDelta struct {
	catIdx  int
	fileIdx int
	path    string

	// metadata is nil when the file was skipped (unreadable, or the run
	// timed out before its turn).
	issues   []types.Issue
	metadata *types.FileMetadata
	metrics  *types.FileMetrics
	warnings []types.Warning
}

// Run executes one full analysis over the configured root. The returned
// result is non-nil whenever analysis started: timeouts and per-file
// failures degrade the result instead of failing the run. The error is
// non-nil only for fatal conditions: discovery failure, or zero files
// analyzed out of a non-empty manifest.
func (e *Engine) Run(ctx context.Context) (*types.AnalysisResult, error) {
	start := time.Now()
	result := &types.AnalysisResult{
		RunID:        uuid.New().String(),
		FileMetadata: make(map[string]types.FileMetadata),
	}

	e.tracker.Reset()
	e.tracker.StageChanged(progress.StageDiscovery)
	manifest, err := discovery.Discover(e.cfg.Root, e.cfg.ExcludePaths)
	if err != nil {
		e.tracker.StageChanged(progress.StageFailed)
		return nil, err
	}
	total := manifest.TotalFiles()
	e.tracker.SetTotal(total)

	e.tracker.StageChanged(progress.StageStrategy)
	plan := ChoosePlan(manifest, e.cfg.ParallelThreshold)

	e.tracker.StageChanged(progress.StageAnalysis)

	indexer := index.NewIndexer(e.log, e.store, e.cfg.IndexQueueSize)
	indexer.Start(ctx, e.cfg.IndexWorkers)

	runCtx := ctx
	cancel := func() {}
	if e.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
	}
	defer cancel()

	deltas := e.runAnalysis(runCtx, plan, manifest, indexer)

	var runWarnings []types.Warning
	if runCtx.Err() != nil {
		runWarnings = append(runWarnings, types.Warning{
			Kind:    types.WarnTimeout,
			Message: fmt.Sprintf("run stopped after %v, reporting partial results", e.cfg.RunTimeout),
		})
	}

	e.tracker.StageChanged(progress.StageMerge)
	merge(result, deltas)
	result.Warnings = append(result.Warnings, runWarnings...)

	e.tracker.StageChanged(progress.StageIndexing)
	indexer.Drain()
	result.Warnings = append(result.Warnings, indexer.Warnings()...)

	result.Summarize(total, time.Since(start))

	if total > 0 && result.Summary.AnalyzedFiles == 0 {
		e.tracker.StageChanged(progress.StageFailed)
		return result, fmt.Errorf("no files analyzed out of %d discovered", total)
	}

	e.tracker.StageChanged(progress.StageDone)
	return result, nil
}

// runAnalysis dispatches one branch per category and collects every file
// delta. Branches share a global in-flight cap on top of their per-branch
// worker limit.
func (e *Engine) runAnalysis(ctx context.Context, plan Plan, manifest *discovery.Manifest, indexer *index.Indexer) []*fileDelta {
	inFlight := semaphore.NewWeighted(e.cfg.MaxInFlight)

	var deltas []*fileDelta
	results := make(chan *fileDelta, manifest.TotalFiles())

	var g errgroup.Group
	for _, category := range plan.Categories {
		catIdx := indexOfCategory(category)
		files := manifest.Files[category]

		g.Go(func() error {
			var branch errgroup.Group
			branch.SetLimit(e.cfg.Workers)
			for fileIdx, path := range files {
				if ctx.Err() != nil {
					break
				}
				branch.Go(func() error {
					if err := inFlight.Acquire(ctx, 1); err != nil {
						results <- &fileDelta{catIdx: catIdx, fileIdx: fileIdx, path: path}
						return nil
					}
					defer inFlight.Release(1)
					results <- e.processFile(ctx, catIdx, fileIdx, category, path, indexer)
					return nil
				})
			}
			return branch.Wait()
		})
	}

	done := make(chan struct{})
	go func() {
		for delta := range results {
			deltas = append(deltas, delta)
		}
		close(done)
	}()

	g.Wait()
	close(results)
	<-done

	return deltas
}

// processFile runs the per-file pipeline: read, cache lookup, analyze,
// decide, cache store, index, progress. Everything it returns is owned by
// the delta; nothing shared is mutated.
func (e *Engine) processFile(ctx context.Context, catIdx, fileIdx int, category, path string, indexer *index.Indexer) *fileDelta {
	fileStart := time.Now()
	delta := &fileDelta{catIdx: catIdx, fileIdx: fileIdx, path: path}

	content, err := os.ReadFile(path)
	if err != nil {
		delta.warnings = append(delta.warnings, types.Warning{
			File:    path,
			Kind:    types.WarnAnalyzer,
			Message: fmt.Sprintf("cannot read file: %v", err),
		})
		e.tracker.FileCompleted(time.Since(fileStart), 0)
		return delta
	}

	hash := types.HashContent(content)
	key := cache.Key{Path: path, ContentHash: hash}

	if entry, ok := e.cache.Get(key); ok {
		delta.issues = entry.Issues
		meta := entry.Metadata
		delta.metadata = &meta

		indexer.Enqueue(&index.Document{
			Path:     path,
			Content:  content,
			Metadata: entry.Metadata,
			Issues:   entry.Issues,
		})
		e.tracker.FileCompleted(time.Since(fileStart), len(entry.Issues))
		return delta
	}

	a, err := e.registry.Get(category)
	if err != nil {
		delta.warnings = append(delta.warnings, types.Warning{
			File:    path,
			Kind:    types.WarnAnalyzer,
			Message: err.Error(),
		})
		e.tracker.FileCompleted(time.Since(fileStart), 0)
		return delta
	}

	// The safe adapter never returns an error.
	res, _ := a.Analyze(ctx, path, content)
	if res.Degraded {
		delta.warnings = append(delta.warnings, types.Warning{
			File:    path,
			Kind:    types.WarnAnalyzer,
			Message: res.FailureReason,
		})
	}

	outcome := e.decider.Decide(ctx, &decision.Input{
		Path:            path,
		Language:        category,
		Content:         content,
		ContentHash:     hash,
		Issues:          res.Issues,
		DependencyCount: res.DependencyCount,
	})
	if outcome.Warning != nil {
		delta.warnings = append(delta.warnings, *outcome.Warning)
	}

	delta.issues = outcome.Issues
	delta.metadata = &outcome.Metadata
	metrics := res.Metrics
	delta.metrics = &metrics

	e.cache.Put(key, cache.Entry{Issues: outcome.Issues, Metadata: outcome.Metadata})

	indexer.Enqueue(&index.Document{
		Path:     path,
		Content:  content,
		Metadata: outcome.Metadata,
		Issues:   outcome.Issues,
	})

	e.tracker.FileCompleted(time.Since(fileStart), len(outcome.Issues))
	return delta
}

// merge folds deltas into the result in canonical order: category declaration
// order, then file discovery order. Duplicate issue ids keep the higher
// severity occurrence. Merge is the only writer of the result.
func merge(result *types.AnalysisResult, deltas []*fileDelta) {
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].catIdx != deltas[j].catIdx {
			return deltas[i].catIdx < deltas[j].catIdx
		}
		return deltas[i].fileIdx < deltas[j].fileIdx
	})

	seen := make(map[string]int)
	for _, delta := range deltas {
		for _, issue := range delta.issues {
			if prev, ok := seen[issue.ID]; ok {
				if issue.Severity.Rank() > result.Issues[prev].Severity.Rank() {
					result.Issues[prev] = issue
				}
				continue
			}
			seen[issue.ID] = len(result.Issues)
			result.Issues = append(result.Issues, issue)
		}
		if delta.metadata != nil {
			result.FileMetadata[delta.path] = *delta.metadata
		}
		if delta.metrics != nil {
			result.Metrics = append(result.Metrics, *delta.metrics)
		}
		result.Warnings = append(result.Warnings, delta.warnings...)
	}
}

func indexOfCategory(category string) int {
	for i, c := range discovery.Categories {
		if c == category {
			return i
		}
	}
	return len(discovery.Categories)
}
