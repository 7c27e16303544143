// Package progress tracks live run state. Counters only move forward:
// completed files and issue counts never decrease, and percentage is derived
// from them, so subscribers can render progress bars without smoothing.
package progress

import (
	"sync"
	"time"
)

// Stage identifies where a run is in its lifecycle.
type Stage string

const (
	StageInit      Stage = "init"
	StageDiscovery Stage = "discovery"
	StageStrategy  Stage = "strategy"
	StageAnalysis  Stage = "analysis"
	StageMerge     Stage = "merge"
	StageIndexing  Stage = "indexing"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Snapshot is one observed point of run progress.
type Snapshot struct {
	Stage              Stage
	TotalFiles         int
	CompletedFiles     int
	IssuesFound        int
	Percentage         float64
	EstimatedRemaining time.Duration
	Timestamp          time.Time
}

// etaWindow is how many recent per-file durations feed the estimate.
const etaWindow = 20

// Tracker accumulates progress and fans snapshots out to subscribers.
// All methods are safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	stage       Stage
	total       int
	completed   int
	issues      int
	durations   []time.Duration
	subscribers []chan Snapshot
}

// NewTracker returns a tracker in the init stage.
func NewTracker() *Tracker {
	return &Tracker{stage: StageInit}
}

// Subscribe returns a channel receiving every snapshot from now on. The
// channel is buffered; a slow reader drops snapshots rather than stalling
// the run.
func (t *Tracker) Subscribe() <-chan Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Snapshot, 64)
	t.subscribers = append(t.subscribers, ch)
	return ch
}

// SetTotal records how many files the run will process.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.publish()
}

// Reset clears per-run state so the tracker can serve a new run. Subscribers
// stay attached; counters stay monotonic within each run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = StageInit
	t.total = 0
	t.completed = 0
	t.issues = 0
	t.durations = nil
}

// StageChanged records a lifecycle transition.
func (t *Tracker) StageChanged(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.publish()
}

// FileCompleted records one finished file with its processing duration and
// how many issues it contributed.
func (t *Tracker) FileCompleted(duration time.Duration, issueCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.issues += issueCount
	t.durations = append(t.durations, duration)
	if len(t.durations) > etaWindow {
		t.durations = t.durations[len(t.durations)-etaWindow:]
	}
	t.publish()
}

// Current returns the latest snapshot without publishing.
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// snapshot must be called with the lock held.
func (t *Tracker) snapshot() Snapshot {
	s := Snapshot{
		Stage:          t.stage,
		TotalFiles:     t.total,
		CompletedFiles: t.completed,
		IssuesFound:    t.issues,
		Timestamp:      time.Now(),
	}
	if t.total > 0 {
		s.Percentage = float64(t.completed) / float64(t.total) * 100
	}
	if len(t.durations) > 0 && t.total > t.completed {
		var sum time.Duration
		for _, d := range t.durations {
			sum += d
		}
		avg := sum / time.Duration(len(t.durations))
		s.EstimatedRemaining = avg * time.Duration(t.total-t.completed)
	}
	return s
}

// publish must be called with the lock held.
func (t *Tracker) publish() {
	s := t.snapshot()
	for _, ch := range t.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}
