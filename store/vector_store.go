package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/coursemat/course-agent/embeddings"
)

const defaultMaxResults = 5

// PostgresVectorStore owns the durable copy of courses and chunks. The catalog
// table backs fuzzy course-name resolution and statistics; the chunk table
// backs filtered semantic search.
type PostgresVectorStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	logger   *log.Logger

	maxResults int
	// maxNameDistance bounds catalog resolution; zero accepts any distance.
	maxNameDistance float64
}

func NewPostgresVectorStore(pool *pgxpool.Pool, embedder embeddings.Embedder, maxResults int, maxNameDistance float64, logger *log.Logger) *PostgresVectorStore {
	if logger == nil {
		logger = log.Default()
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	return &PostgresVectorStore{
		pool:            pool,
		embedder:        embedder,
		logger:          logger,
		maxResults:      maxResults,
		maxNameDistance: maxNameDistance,
	}
}

type catalogLesson struct {
	LessonNumber int    `json:"lesson_number"`
	LessonTitle  string `json:"lesson_title"`
	LessonLink   string `json:"lesson_link,omitempty"`
}

// AddCourse inserts the course into the catalog and reports whether a new row
// was created. A course whose title already exists is left untouched, which is
// the incremental-load mechanism: re-ingesting the same course is a no-op.
func (s *PostgresVectorStore) AddCourse(ctx context.Context, course Course) (bool, error) {
	if course.Title == "" {
		return false, fmt.Errorf("course title must not be empty")
	}

	vectors, err := s.embedder.Embed(ctx, []string{course.Title})
	if err != nil {
		return false, fmt.Errorf("embed course title: %w", err)
	}
	if len(vectors) == 0 {
		return false, fmt.Errorf("embedder returned no vector for course title")
	}

	lessons := make([]catalogLesson, len(course.Lessons))
	for i, lesson := range course.Lessons {
		lessons[i] = catalogLesson{
			LessonNumber: lesson.Number,
			LessonTitle:  lesson.Title,
			LessonLink:   lesson.Link,
		}
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return false, fmt.Errorf("marshal lessons: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO course_catalog (title, course_link, instructor, lessons_json, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (title) DO NOTHING
	`, course.Title, course.Link, course.Instructor, lessonsJSON, pgvector.NewVector(vectors[0]))
	if err != nil {
		return false, fmt.Errorf("insert course: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// AddChunks embeds and upserts content chunks in one transaction. Re-inserting
// under an existing (course, lesson, index) identity overwrites in place.
func (s *PostgresVectorStore) AddChunks(ctx context.Context, chunks []Chunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	for i, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO course_chunks (id, course_title, lesson_number, chunk_index, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			ON CONFLICT (course_title, COALESCE(lesson_number, -1), chunk_index)
			DO UPDATE SET content = EXCLUDED.content,
			              embedding = EXCLUDED.embedding,
			              updated_at = NOW()
		`, uuid.New(), chunk.CourseTitle, chunk.LessonNumber, chunk.Index, chunk.Content, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ResolveCourseName maps a fuzzy or partial course name to the best-matching
// exact catalog title. An empty catalog, or a nearest match beyond the
// configured distance bound, yields ErrCourseNotFound.
func (s *PostgresVectorStore) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vectors, err := s.embedder.Embed(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("embedder returned no vector for course name")
	}

	var (
		title    string
		distance float64
	)
	err = s.pool.QueryRow(ctx, `
		SELECT title, embedding <-> $1::vector AS distance
		FROM course_catalog
		ORDER BY embedding <-> $1::vector
		LIMIT 1
	`, pgvector.NewVector(vectors[0])).Scan(&title, &distance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
		}
		return "", fmt.Errorf("resolve course name: %w", err)
	}

	if s.maxNameDistance > 0 && distance > s.maxNameDistance {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}

	return title, nil
}

// Search performs filtered similarity search over the content collection.
// Results come back best-first (ascending distance, chunk index breaking
// ties). An empty store returns an empty slice; a course filter that cannot be
// resolved returns an ErrCourseNotFound-wrapped error so callers can surface a
// labeled "no course found" message instead of silently searching everything.
func (s *PostgresVectorStore) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	courseTitle := ""
	if opts.CourseName != "" {
		resolved, err := s.ResolveCourseName(ctx, opts.CourseName)
		if err != nil {
			return nil, err
		}
		courseTitle = resolved
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := limit * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT content, course_title, lesson_number, embedding <-> $1::vector AS distance
		FROM course_chunks
		WHERE ($2 = '' OR course_title = $2)
		  AND ($3::int IS NULL OR lesson_number = $3)
		ORDER BY embedding <-> $1::vector, chunk_index
		LIMIT $4
	`, pgvector.NewVector(vectors[0]), courseTitle, opts.LessonNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("query course chunks: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, limit)
	for rows.Next() {
		var item SearchResult
		if scanErr := rows.Scan(&item.Content, &item.CourseTitle, &item.LessonNumber, &item.Distance); scanErr != nil {
			return nil, fmt.Errorf("scan search result: %w", scanErr)
		}
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (s *PostgresVectorStore) CourseCount(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM course_catalog").Scan(&count); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

// CourseTitles lists every cataloged course title, ordered for stable
// analytics output.
func (s *PostgresVectorStore) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT title FROM course_catalog ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("query course titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan course title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// LessonLink returns the stored link for a lesson, or "" when the lesson has
// none.
func (s *PostgresVectorStore) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	var lessonsJSON []byte
	err := s.pool.QueryRow(ctx, "SELECT lessons_json FROM course_catalog WHERE title = $1", courseTitle).Scan(&lessonsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %q", ErrCourseNotFound, courseTitle)
		}
		return "", fmt.Errorf("query lessons: %w", err)
	}

	var lessons []catalogLesson
	if err := json.Unmarshal(lessonsJSON, &lessons); err != nil {
		return "", fmt.Errorf("unmarshal lessons: %w", err)
	}

	for _, lesson := range lessons {
		if lesson.LessonNumber == lessonNumber {
			return lesson.LessonLink, nil
		}
	}
	return "", nil
}

// CourseOutline resolves a fuzzy name and returns the full course metadata
// with its ordered lesson list.
func (s *PostgresVectorStore) CourseOutline(ctx context.Context, name string) (*Course, error) {
	title, err := s.ResolveCourseName(ctx, name)
	if err != nil {
		return nil, err
	}

	course := Course{Title: title}
	var lessonsJSON []byte
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(course_link, ''), COALESCE(instructor, ''), lessons_json
		FROM course_catalog
		WHERE title = $1
	`, title).Scan(&course.Link, &course.Instructor, &lessonsJSON)
	if err != nil {
		return nil, fmt.Errorf("query course outline: %w", err)
	}

	var lessons []catalogLesson
	if err := json.Unmarshal(lessonsJSON, &lessons); err != nil {
		return nil, fmt.Errorf("unmarshal lessons: %w", err)
	}
	for _, lesson := range lessons {
		course.Lessons = append(course.Lessons, Lesson{
			Number: lesson.LessonNumber,
			Title:  lesson.LessonTitle,
			Link:   lesson.LessonLink,
		})
	}

	return &course, nil
}

// Clear removes every course and chunk. Chunks cascade from the catalog.
func (s *PostgresVectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE course_chunks, course_catalog"); err != nil {
		return fmt.Errorf("truncate course tables: %w", err)
	}
	return nil
}
