// Package sqlite persists index chunks so a later query session can load
// them without rerunning analysis.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/codescope/codescope/internal/index"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id              TEXT PRIMARY KEY,
	source_file     TEXT NOT NULL,
	ordinal         INTEGER NOT NULL,
	content         TEXT NOT NULL,
	language        TEXT NOT NULL DEFAULT '',
	truncated       INTEGER NOT NULL DEFAULT 0,
	business_impact TEXT NOT NULL DEFAULT '',
	concerns        TEXT NOT NULL DEFAULT '',
	low_issues      INTEGER NOT NULL DEFAULT 0,
	medium_issues   INTEGER NOT NULL DEFAULT 0,
	high_issues     INTEGER NOT NULL DEFAULT 0,
	critical_issues INTEGER NOT NULL DEFAULT 0,
	indexed_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_source_file ON chunks(source_file);
`

// Store is a SQLite-backed chunk store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the chunk database at path.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts chunks in one transaction. Reindexing the same file replaces
// its previous chunks.
func (s *Store) Save(ctx context.Context, chunks []index.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Chunk ids are fresh per run, so stale chunks for the same file are
	// removed first.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE source_file = ?", chunks[0].SourceFile); err != nil {
		return fmt.Errorf("failed to clear stale chunks: %w", err)
	}

	for _, c := range chunks {
		truncated := 0
		if c.Metadata.Truncated {
			truncated = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (
				id, source_file, ordinal, content, language, truncated,
				business_impact, concerns,
				low_issues, medium_issues, high_issues, critical_issues,
				indexed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.SourceFile, c.Ordinal, c.Content, c.Metadata.Language, truncated,
			c.Metadata.BusinessImpact, c.Metadata.Concerns,
			c.Metadata.LowIssues, c.Metadata.MediumIssues,
			c.Metadata.HighIssues, c.Metadata.CriticalIssues,
			c.Metadata.IndexedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Load reads every persisted chunk, ordered by source file and ordinal.
func (s *Store) Load(ctx context.Context) ([]index.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_file, ordinal, content, language, truncated,
			business_impact, concerns,
			low_issues, medium_issues, high_issues, critical_issues,
			indexed_at
		FROM chunks
		ORDER BY source_file, ordinal`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []index.Chunk
	for rows.Next() {
		var c index.Chunk
		var truncated int
		var indexedAt string
		err := rows.Scan(&c.ID, &c.SourceFile, &c.Ordinal, &c.Content,
			&c.Metadata.Language, &truncated,
			&c.Metadata.BusinessImpact, &c.Metadata.Concerns,
			&c.Metadata.LowIssues, &c.Metadata.MediumIssues,
			&c.Metadata.HighIssues, &c.Metadata.CriticalIssues,
			&indexedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Metadata.Truncated = truncated != 0
		if ts, err := time.Parse(time.RFC3339, indexedAt); err == nil {
			c.Metadata.IndexedAt = ts
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
