package index

import (
	"sort"
	"strings"
	"sync"
)

// Log is the append-only in-memory index. Chunks become queryable the
// moment they are appended, while the rest of the run is still executing.
type Log struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds chunks to the log.
func (l *Log) Append(chunks ...Chunk) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks = append(l.chunks, chunks...)
}

// Len returns the number of indexed chunks.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chunks)
}

// Chunks returns a copy of all indexed chunks.
func (l *Log) Chunks() []Chunk {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Chunk, len(l.chunks))
	copy(out, l.chunks)
	return out
}

// QueryResult is one scored match.
type QueryResult struct {
	Chunk Chunk
	Score float64
}

// Query ranks chunks by lexical overlap with the query terms and returns at
// most limit results, best first. Ties break on source file then ordinal so
// results are deterministic.
func (l *Log) Query(text string, limit int) []QueryResult {
	terms := tokenize(text)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var results []QueryResult
	for _, chunk := range l.chunks {
		score := overlapScore(terms, chunk)
		if score > 0 {
			results = append(results, QueryResult{Chunk: chunk, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.SourceFile != results[j].Chunk.SourceFile {
			return results[i].Chunk.SourceFile < results[j].Chunk.SourceFile
		}
		return results[i].Chunk.Ordinal < results[j].Chunk.Ordinal
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_'
	})
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if len(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// overlapScore is the fraction of query terms present in the chunk's content
// or metadata text fields.
func overlapScore(terms []string, chunk Chunk) float64 {
	haystack := strings.ToLower(chunk.Content + " " + chunk.SourceFile + " " +
		chunk.Metadata.BusinessImpact + " " + chunk.Metadata.Concerns)
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
