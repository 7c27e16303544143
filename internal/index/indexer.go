package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/codescope/codescope/internal/types"
)

// Store persists chunks. Saves are best-effort: a failing store degrades to
// in-memory-only indexing, it never fails the run.
type Store interface {
	Save(ctx context.Context, chunks []Chunk) error
}

// Indexer consumes finished documents on a background worker pool, appending
// chunks to the in-memory log first (immediately queryable) and then
// persisting them.
type Indexer struct {
	log   *Log
	store Store
	queue chan *Document
	wg    sync.WaitGroup

	mu       sync.Mutex
	warnings []types.Warning
}

// NewIndexer builds an indexer over log. store may be nil for in-memory
// only operation.
func NewIndexer(log *Log, store Store, queueSize int) *Indexer {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Indexer{
		log:   log,
		store: store,
		queue: make(chan *Document, queueSize),
	}
}

// Start launches the worker pool. ctx cancellation stops persistence but
// queued documents are still appended to the in-memory log.
func (ix *Indexer) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		ix.wg.Add(1)
		go func() {
			defer ix.wg.Done()
			for doc := range ix.queue {
				ix.process(ctx, doc)
			}
		}()
	}
}

// Enqueue submits a finished document for indexing. Blocks if the queue is
// full, providing backpressure against a slow store.
func (ix *Indexer) Enqueue(doc *Document) {
	ix.queue <- doc
}

// Drain closes the queue and waits for all queued documents to be indexed.
// Call exactly once, after the last Enqueue.
func (ix *Indexer) Drain() {
	close(ix.queue)
	ix.wg.Wait()
}

// Warnings returns persistence failures collected so far.
func (ix *Indexer) Warnings() []types.Warning {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]types.Warning, len(ix.warnings))
	copy(out, ix.warnings)
	return out
}

func (ix *Indexer) process(ctx context.Context, doc *Document) {
	chunks := BuildChunks(doc)
	if len(chunks) == 0 {
		return
	}

	ix.log.Append(chunks...)

	if ix.store == nil {
		return
	}
	if err := ix.store.Save(ctx, chunks); err != nil {
		ix.mu.Lock()
		ix.warnings = append(ix.warnings, types.Warning{
			File:    doc.Path,
			Kind:    types.WarnIndex,
			Message: fmt.Sprintf("failed to persist index chunks: %v", err),
		})
		ix.mu.Unlock()
	}
}
