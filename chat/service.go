package chat

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/coursemat/course-agent/ingestion"
	"github.com/coursemat/course-agent/llm"
	"github.com/coursemat/course-agent/store"
	"github.com/coursemat/course-agent/tools"
)

// CourseStore is the slice of the vector store the service needs.
type CourseStore interface {
	AddCourse(ctx context.Context, course store.Course) (bool, error)
	AddChunks(ctx context.Context, chunks []store.Chunk) error
	CourseCount(ctx context.Context) (int, error)
	CourseTitles(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// GraphSyncer mirrors loaded courses into the knowledge graph. Optional:
// graph failures are logged, never fatal to ingestion.
type GraphSyncer interface {
	SyncCourse(ctx context.Context, course store.Course) error
	Purge(ctx context.Context) error
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	MaxHistory   int
}

// Service is the top-level orchestrator: it loads course documents into the
// store at startup and answers queries by driving the generator, collecting
// tool-tracked sources and maintaining per-session history.
type Service struct {
	courses   CourseStore
	graph     GraphSyncer
	generator *Generator
	tools     *tools.Manager
	sessions  *SessionManager
	chunker   *ingestion.Chunker
	logger    *log.Logger
}

func NewService(courses CourseStore, graph GraphSyncer, client llm.Client, toolManager *tools.Manager, cfg Config, logger *log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.Default()
	}

	chunker, err := ingestion.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("configure chunker: %w", err)
	}

	return &Service{
		courses:   courses,
		graph:     graph,
		generator: NewGenerator(client, logger),
		tools:     toolManager,
		sessions:  NewSessionManager(cfg.MaxHistory),
		chunker:   chunker,
		logger:    logger,
	}, nil
}

// AddCourseDocument parses and loads a single course file. The skipped flag
// reports that the course title was already in the catalog and nothing was
// written; a freshly inserted course is never skipped, even when its document
// yields no chunks.
func (s *Service) AddCourseDocument(ctx context.Context, path string) (course *store.Course, chunkCount int, skipped bool, err error) {
	content, err := ingestion.ReadDocument(path)
	if err != nil {
		return nil, 0, false, fmt.Errorf("read course document: %w", err)
	}

	parsed, err := ingestion.ParseCourseDocument(content, s.chunker)
	if err != nil {
		return nil, 0, false, fmt.Errorf("parse course document: %w", err)
	}

	inserted, err := s.courses.AddCourse(ctx, parsed.Course)
	if err != nil {
		return nil, 0, false, fmt.Errorf("add course: %w", err)
	}
	if !inserted {
		s.logger.Printf("course %q already loaded, skipping", parsed.Course.Title)
		return &parsed.Course, 0, true, nil
	}

	if err := s.courses.AddChunks(ctx, parsed.Chunks); err != nil {
		return nil, 0, false, fmt.Errorf("add chunks: %w", err)
	}

	if s.graph != nil {
		if err := s.graph.SyncCourse(ctx, parsed.Course); err != nil {
			s.logger.Printf("sync course graph for %q: %v", parsed.Course.Title, err)
		}
	}

	return &parsed.Course, len(parsed.Chunks), false, nil
}

// LoadCourses walks dir for course documents and loads the ones whose titles
// are not yet in the catalog. A bad file is logged and skipped; it never
// aborts the batch. Returns how many courses were newly loaded and their
// titles.
func (s *Service) LoadCourses(ctx context.Context, dir string) (int, []string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if ingestion.DetectFormat(path) != ingestion.FormatUnknown {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("walk course directory: %w", err)
	}

	if len(paths) == 0 {
		s.logger.Printf("no course documents found in %s", dir)
		return 0, nil, nil
	}

	loaded := 0
	var titles []string
	for _, path := range paths {
		course, chunkCount, skipped, loadErr := s.AddCourseDocument(ctx, path)
		if loadErr != nil {
			s.logger.Printf("load failed for %s: %v", path, loadErr)
			continue
		}
		if skipped {
			continue
		}
		loaded++
		titles = append(titles, course.Title)
		s.logger.Printf("loaded course %q (%d chunks)", course.Title, chunkCount)
	}

	return loaded, titles, nil
}

// Answer runs one query end to end: history lookup, generation with the tool
// round, source collection and session bookkeeping. An empty session id
// creates a new session; the id used is echoed in the response.
func (s *Service) Answer(ctx context.Context, query, sessionID string) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("query cannot be empty")
	}

	if sessionID == "" {
		sessionID = s.sessions.Create()
	}
	history := s.sessions.History(sessionID)

	answer, err := s.generator.Generate(ctx, query, history, s.tools)
	if err != nil {
		return Response{}, err
	}

	sources := s.tools.LastSources()
	s.tools.ResetSources()

	s.sessions.AddExchange(sessionID, query, answer)

	return Response{Answer: answer, Sources: sources, SessionID: sessionID}, nil
}

// Analytics reports how many courses are loaded and their titles.
func (s *Service) Analytics(ctx context.Context) (Stats, error) {
	count, err := s.courses.CourseCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	titles, err := s.courses.CourseTitles(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{CourseCount: count, CourseTitles: titles}, nil
}

// ClearData removes all loaded course material from the store and the graph.
func (s *Service) ClearData(ctx context.Context) error {
	if err := s.courses.Clear(ctx); err != nil {
		return fmt.Errorf("clear course store: %w", err)
	}
	if s.graph != nil {
		if err := s.graph.Purge(ctx); err != nil {
			return fmt.Errorf("purge course graph: %w", err)
		}
	}
	return nil
}
