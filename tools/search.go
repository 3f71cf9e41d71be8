package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/coursemat/course-agent/llm"
	"github.com/coursemat/course-agent/store"
)

// SearchStore is the slice of the vector store the search tool needs.
type SearchStore interface {
	Search(ctx context.Context, query string, opts store.SearchOptions) ([]store.SearchResult, error)
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
}

// SearchTool exposes filtered semantic search over course content to the
// model and tracks the sources behind its last execution.
type SearchTool struct {
	store   SearchStore
	logger  *log.Logger
	sources []Source
}

func NewSearchTool(searchStore SearchStore, logger *log.Logger) *SearchTool {
	if logger == nil {
		logger = log.Default()
	}
	return &SearchTool{store: searchStore, logger: logger}
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

func (t *SearchTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "What to search for in the course content"
				},
				"course_name": {
					"type": "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')"
				},
				"lesson_number": {
					"type": "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)"
				}
			},
			"required": ["query"]
		}`),
	}
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed searchArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("decode search arguments: %w", err)
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	results, err := t.store.Search(ctx, parsed.Query, store.SearchOptions{
		CourseName:   parsed.CourseName,
		LessonNumber: parsed.LessonNumber,
	})
	if err != nil {
		if errors.Is(err, store.ErrCourseNotFound) {
			return fmt.Sprintf("No course found matching '%s'", parsed.CourseName), nil
		}
		return "", fmt.Errorf("search course content: %w", err)
	}

	if len(results) == 0 {
		return noResultsMessage(parsed), nil
	}

	blocks := make([]string, 0, len(results))
	for _, result := range results {
		label := result.CourseTitle
		link := ""
		if result.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", result.CourseTitle, *result.LessonNumber)
			lessonLink, linkErr := t.store.LessonLink(ctx, result.CourseTitle, *result.LessonNumber)
			if linkErr != nil {
				t.logger.Printf("lesson link lookup failed for %s lesson %d: %v", result.CourseTitle, *result.LessonNumber, linkErr)
			} else {
				link = lessonLink
			}
		}

		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, result.Content))
		t.sources = append(t.sources, Source{Label: label, Link: link})
	}

	return strings.Join(blocks, "\n\n"), nil
}

func (t *SearchTool) LastSources() []Source {
	return t.sources
}

func (t *SearchTool) ResetSources() {
	t.sources = nil
}

func noResultsMessage(parsed searchArgs) string {
	msg := "No relevant content found"
	if parsed.CourseName != "" {
		msg += fmt.Sprintf(" in course '%s'", parsed.CourseName)
	}
	if parsed.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *parsed.LessonNumber)
	}
	return msg + "."
}
