package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureCourseSchema creates the two course collections: the catalog (one row
// per course, embedded title for fuzzy name resolution) and the content table
// (one row per chunk, embedded text for semantic search). Chunk identity is
// (course title, lesson number, chunk index); lesson-less chunks collapse the
// lesson segment to -1 in the unique index so re-ingestion overwrites in place.
func EnsureCourseSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS course_catalog (
			title TEXT PRIMARY KEY,
			course_link TEXT,
			instructor TEXT,
			lessons_json JSONB NOT NULL DEFAULT '[]',
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS course_chunks (
			id UUID PRIMARY KEY,
			course_title TEXT NOT NULL REFERENCES course_catalog(title) ON DELETE CASCADE,
			lesson_number INT,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_course_chunks_identity
			ON course_chunks (course_title, COALESCE(lesson_number, -1), chunk_index)`,
		"CREATE INDEX IF NOT EXISTS idx_course_chunks_course ON course_chunks(course_title)",
		"CREATE INDEX IF NOT EXISTS idx_course_chunks_embedding ON course_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
