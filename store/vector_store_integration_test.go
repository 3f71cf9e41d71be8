package store_test

import (
	"context"
	"errors"
	"log"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/coursemat/course-agent/config"
	"github.com/coursemat/course-agent/database"
	"github.com/coursemat/course-agent/store"
)

// hashEmbedder is a deterministic embedder for integration runs: similar
// texts map to nearby vectors because each word contributes to a fixed bucket.
type hashEmbedder struct {
	dimension int
}

func (h *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, h.dimension)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			sum := 0
			for _, r := range word {
				sum += int(r)
			}
			vec[sum%h.dimension]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func intptr(n int) *int { return &n }

func setupStore(t *testing.T) (*store.PostgresVectorStore, context.Context) {
	t.Helper()
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run vector store integration tests")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatalf("postgres connection: %v", err)
	}
	t.Cleanup(pool.Close)

	dim := cfg.Embeddings.Dimension
	if err := database.EnsureCourseSchema(ctx, pool, dim); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	logger := log.New(os.Stderr, "", 0)
	vs := store.NewPostgresVectorStore(pool, &hashEmbedder{dimension: dim}, 5, 0, logger)
	if err := vs.Clear(ctx); err != nil {
		t.Fatalf("clear store: %v", err)
	}
	t.Cleanup(func() {
		_ = vs.Clear(context.Background())
	})

	return vs, ctx
}

func seedCourse(t *testing.T, vs *store.PostgresVectorStore, ctx context.Context) {
	t.Helper()

	inserted, err := vs.AddCourse(ctx, store.Course{
		Title:      "Intro to Sets",
		Link:       "https://example.com/sets",
		Instructor: "Ada Lovelace",
		Lessons: []store.Lesson{
			{Number: 1, Title: "Unions", Link: "https://example.com/sets/lesson1"},
			{Number: 2, Title: "Intersections"},
		},
	})
	if err != nil {
		t.Fatalf("add course: %v", err)
	}
	if !inserted {
		t.Fatal("expected a fresh insert")
	}

	chunks := []store.Chunk{
		{Content: "Course Intro to Sets Lesson 1 content: A union combines two sets.", CourseTitle: "Intro to Sets", LessonNumber: intptr(1), Index: 0},
		{Content: "It contains all elements from both sets together.", CourseTitle: "Intro to Sets", LessonNumber: intptr(1), Index: 1},
		{Content: "Course Intro to Sets Lesson 2 content: An intersection keeps only shared elements.", CourseTitle: "Intro to Sets", LessonNumber: intptr(2), Index: 2},
	}
	if err := vs.AddChunks(ctx, chunks); err != nil {
		t.Fatalf("add chunks: %v", err)
	}
}

func TestAddCourseIdempotent(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	inserted, err := vs.AddCourse(ctx, store.Course{Title: "Intro to Sets"})
	if err != nil {
		t.Fatalf("re-add course: %v", err)
	}
	if inserted {
		t.Fatal("duplicate title must not create a second row")
	}

	count, err := vs.CourseCount(ctx)
	if err != nil {
		t.Fatalf("course count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 course, got %d", count)
	}
}

func TestAddChunksUpsertsInPlace(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	updated := []store.Chunk{
		{Content: "Rewritten union chunk.", CourseTitle: "Intro to Sets", LessonNumber: intptr(1), Index: 0},
	}
	if err := vs.AddChunks(ctx, updated); err != nil {
		t.Fatalf("re-add chunk: %v", err)
	}

	results, err := vs.Search(ctx, "Rewritten union chunk.", store.SearchOptions{CourseName: "Intro to Sets", LessonNumber: intptr(1)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 lesson-1 chunks after upsert, got %d", len(results))
	}
	for _, result := range results {
		if strings.Contains(result.Content, "A union combines two sets") {
			t.Fatalf("old content survived the upsert: %q", result.Content)
		}
	}
}

func TestResolveCourseNameFuzzy(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	title, err := vs.ResolveCourseName(ctx, "Intro to Sets")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if title != "Intro to Sets" {
		t.Fatalf("resolved to %q", title)
	}
}

func TestResolveCourseNamePartialMatch(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	inserted, err := vs.AddCourse(ctx, store.Course{Title: "Poetry Basics", Instructor: "Lord Byron"})
	if err != nil {
		t.Fatalf("add second course: %v", err)
	}
	if !inserted {
		t.Fatal("expected a fresh insert")
	}

	// A partial name must land on the catalog title sharing its words, not
	// on an unrelated course.
	title, err := vs.ResolveCourseName(ctx, "Sets")
	if err != nil {
		t.Fatalf("resolve partial name: %v", err)
	}
	if title != "Intro to Sets" {
		t.Fatalf("partial name resolved to %q", title)
	}
}

func TestResolveCourseNameEmptyCatalog(t *testing.T) {
	vs, ctx := setupStore(t)

	_, err := vs.ResolveCourseName(ctx, "anything")
	if !errors.Is(err, store.ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestSearchFiltersAndOrdering(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	results, err := vs.Search(ctx, "union combines sets", store.SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected all 3 chunks, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not in ascending distance order: %v then %v", results[i-1].Distance, results[i].Distance)
		}
	}

	lesson2, err := vs.Search(ctx, "shared elements", store.SearchOptions{LessonNumber: intptr(2)})
	if err != nil {
		t.Fatalf("lesson filter search: %v", err)
	}
	if len(lesson2) != 1 || *lesson2[0].LessonNumber != 2 {
		t.Fatalf("lesson filter failed: %+v", lesson2)
	}
}

func TestSearchUnresolvableCourse(t *testing.T) {
	vs, ctx := setupStore(t)

	_, err := vs.Search(ctx, "anything", store.SearchOptions{CourseName: "No Such Course"})
	if !errors.Is(err, store.ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestLessonLink(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	link, err := vs.LessonLink(ctx, "Intro to Sets", 1)
	if err != nil {
		t.Fatalf("lesson link: %v", err)
	}
	if link != "https://example.com/sets/lesson1" {
		t.Fatalf("got %q", link)
	}

	link, err = vs.LessonLink(ctx, "Intro to Sets", 2)
	if err != nil {
		t.Fatalf("lesson link: %v", err)
	}
	if link != "" {
		t.Fatalf("lesson 2 has no link, got %q", link)
	}
}

func TestCourseOutlineRoundTrip(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	course, err := vs.CourseOutline(ctx, "Intro to Sets")
	if err != nil {
		t.Fatalf("course outline: %v", err)
	}
	if course.Title != "Intro to Sets" || course.Instructor != "Ada Lovelace" {
		t.Fatalf("course metadata: %+v", course)
	}
	if len(course.Lessons) != 2 || course.Lessons[0].Title != "Unions" {
		t.Fatalf("lessons: %+v", course.Lessons)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	vs, ctx := setupStore(t)
	seedCourse(t, vs, ctx)

	if err := vs.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	count, err := vs.CourseCount(ctx)
	if err != nil {
		t.Fatalf("course count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty catalog, got %d courses", count)
	}
}
