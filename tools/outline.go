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

// OutlineStore is the slice of the vector store the outline tool needs.
type OutlineStore interface {
	CourseOutline(ctx context.Context, name string) (*store.Course, error)
}

// RelatedCourseFinder surfaces courses connected to a title in the knowledge
// graph. It is optional; without it the outline simply omits related courses.
type RelatedCourseFinder interface {
	RelatedCourses(ctx context.Context, title string) ([]string, error)
}

// OutlineTool returns a course's structure: title, link, instructor and the
// numbered lesson list, plus related courses when the graph is reachable.
type OutlineTool struct {
	store   OutlineStore
	related RelatedCourseFinder
	logger  *log.Logger
	sources []Source
}

func NewOutlineTool(outlineStore OutlineStore, related RelatedCourseFinder, logger *log.Logger) *OutlineTool {
	if logger == nil {
		logger = log.Default()
	}
	return &OutlineTool{store: outlineStore, related: related, logger: logger}
}

type outlineArgs struct {
	CourseTitle string `json:"course_title"`
}

func (t *OutlineTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        "get_course_outline",
		Description: "Get the complete outline of a course: title, link, instructor and full lesson list",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"course_title": {
					"type": "string",
					"description": "Course title (partial matches work)"
				}
			},
			"required": ["course_title"]
		}`),
	}
}

func (t *OutlineTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed outlineArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("decode outline arguments: %w", err)
	}
	if strings.TrimSpace(parsed.CourseTitle) == "" {
		return "", fmt.Errorf("course_title must not be empty")
	}

	course, err := t.store.CourseOutline(ctx, parsed.CourseTitle)
	if err != nil {
		if errors.Is(err, store.ErrCourseNotFound) {
			return fmt.Sprintf("No course found matching '%s'", parsed.CourseTitle), nil
		}
		return "", fmt.Errorf("get course outline: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Course:** %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&sb, "**Course Link:** %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&sb, "**Instructor:** %s\n", course.Instructor)
	}

	if len(course.Lessons) > 0 {
		sb.WriteString("\nLessons:\n")
		for _, lesson := range course.Lessons {
			if lesson.Link != "" {
				fmt.Fprintf(&sb, "%d. %s (%s)\n", lesson.Number, lesson.Title, lesson.Link)
			} else {
				fmt.Fprintf(&sb, "%d. %s\n", lesson.Number, lesson.Title)
			}
		}
	}

	if t.related != nil {
		related, relErr := t.related.RelatedCourses(ctx, course.Title)
		if relErr != nil {
			t.logger.Printf("related courses lookup failed for %s: %v", course.Title, relErr)
		} else if len(related) > 0 {
			sb.WriteString("\nRelated courses by the same instructor:\n")
			for _, title := range related {
				fmt.Fprintf(&sb, "- %s\n", title)
			}
		}
	}

	t.sources = append(t.sources, Source{Label: course.Title, Link: course.Link})

	return strings.TrimRight(sb.String(), "\n"), nil
}

func (t *OutlineTool) LastSources() []Source {
	return t.sources
}

func (t *OutlineTool) ResetSources() {
	t.sources = nil
}
