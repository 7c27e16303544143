// Package index builds the queryable knowledge index incrementally while a
// run is still executing. Finished files are chunked and appended to an
// in-memory log that is searchable immediately; persistence to disk is
// best-effort and happens in the background.
package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codescope/codescope/internal/types"
)

// ChunkMetadata carries scalar facts about a chunk's source file. List
// values are flattened to comma-joined strings so every field stays a
// scalar for storage.
type ChunkMetadata struct {
	Language       string
	Truncated      bool
	BusinessImpact string
	Concerns       string
	LowIssues      int
	MediumIssues   int
	HighIssues     int
	CriticalIssues int
	IndexedAt      time.Time
}

// Chunk is one indexable unit of a file.
type Chunk struct {
	ID         string
	SourceFile string
	Ordinal    int
	Content    string
	Metadata   ChunkMetadata
}

// Document is one finished file handed to the indexer.
type Document struct {
	Path     string
	Content  []byte
	Metadata types.FileMetadata
	Issues   []types.Issue
}

const (
	// gistChars is how much raw code accompanies a truncated file's
	// description in the index.
	gistChars = 100
	// maxContentChars caps indexed content for non-truncated files.
	maxContentChars = 3000
	// windowChars and windowOverlap drive fallback splitting when no
	// structural boundaries are found.
	windowChars   = 800
	windowOverlap = 120
)

// SelectContent decides what text represents a file in the index. Truncated
// files are represented by their description plus a short code gist;
// everything else gets its content, capped.
func SelectContent(content string, meta types.FileMetadata) string {
	if meta.Truncated && meta.Description != "" {
		gist := content
		if len(gist) > gistChars {
			gist = gist[:gistChars]
		}
		return fmt.Sprintf("Description: %s\n\nCode gist: %s", meta.Description, gist)
	}
	if len(content) > maxContentChars {
		return content[:maxContentChars] + "\n... [truncated]"
	}
	return content
}

// Split breaks text into chunks at top-level declaration boundaries. Text
// with no recognizable structure falls back to fixed overlapping windows.
func Split(text string) []string {
	lines := strings.Split(text, "\n")

	var boundaries []int
	for i, line := range lines {
		if isTopLevelDecl(line) {
			boundaries = append(boundaries, i)
		}
	}

	if len(boundaries) < 2 {
		return splitWindows(text)
	}

	var chunks []string
	start := 0
	for _, b := range boundaries {
		if b == 0 {
			continue
		}
		segment := strings.TrimSpace(strings.Join(lines[start:b], "\n"))
		if segment != "" {
			chunks = append(chunks, segment)
		}
		start = b
	}
	if tail := strings.TrimSpace(strings.Join(lines[start:], "\n")); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

func isTopLevelDecl(line string) bool {
	return strings.HasPrefix(line, "def ") ||
		strings.HasPrefix(line, "class ") ||
		strings.HasPrefix(line, "func ") ||
		strings.HasPrefix(line, "function ") ||
		strings.HasPrefix(line, "async def ")
}

func splitWindows(text string) []string {
	if len(text) <= windowChars {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	var chunks []string
	step := windowChars - windowOverlap
	for start := 0; start < len(text); start += step {
		end := start + windowChars
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// BuildChunks turns a document into its indexable chunks.
func BuildChunks(doc *Document) []Chunk {
	selected := SelectContent(string(doc.Content), doc.Metadata)
	parts := Split(selected)

	meta := ChunkMetadata{
		Language:       doc.Metadata.Language,
		Truncated:      doc.Metadata.Truncated,
		BusinessImpact: doc.Metadata.BusinessImpact,
		Concerns:       types.JoinConcerns(doc.Metadata.ArchitecturalConcerns),
		IndexedAt:      time.Now().UTC(),
	}
	for _, issue := range doc.Issues {
		switch issue.Severity {
		case types.SeverityLow:
			meta.LowIssues++
		case types.SeverityMedium:
			meta.MediumIssues++
		case types.SeverityHigh:
			meta.HighIssues++
		case types.SeverityCritical:
			meta.CriticalIssues++
		}
	}

	chunks := make([]Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, Chunk{
			ID:         uuid.New().String(),
			SourceFile: doc.Path,
			Ordinal:    i,
			Content:    part,
			Metadata:   meta,
		})
	}
	return chunks
}
