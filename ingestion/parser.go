package ingestion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coursemat/course-agent/store"
)

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// ParsedCourse is the outcome of parsing one course document: the course
// metadata plus the ordered chunks across all its lessons.
type ParsedCourse struct {
	Course store.Course
	Chunks []store.Chunk
}

type rawLesson struct {
	number      int
	title       string
	link        string
	body        []string
	bodyStarted bool
}

// ParseCourseDocument extracts the fixed-format header (Course Title is
// mandatory, link and instructor are optional) and the lesson blocks that
// follow, chunking each lesson's text with the supplied chunker. The first
// chunk of a lesson carries a contextual prefix so it stays self-describing
// when retrieved alone; body text before the first lesson marker becomes
// course-level chunks. The chunk index runs across the whole course.
func ParseCourseDocument(content string, chunker *Chunker) (*ParsedCourse, error) {
	course := store.Course{}
	var courseBody []string
	var lessons []*rawLesson
	var current *rawLesson

	for _, line := range strings.Split(normalizeNewlines(content), "\n") {
		trimmed := strings.TrimSpace(line)

		if m := lessonMarker.FindStringSubmatch(trimmed); m != nil {
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("parse lesson number %q: %w", m[1], err)
			}
			current = &rawLesson{number: number, title: strings.TrimSpace(m[2])}
			lessons = append(lessons, current)
			continue
		}

		if current == nil {
			switch {
			case hasHeaderField(trimmed, "Course Title:"):
				course.Title = headerValue(trimmed, "Course Title:")
			case hasHeaderField(trimmed, "Course Link:"):
				course.Link = headerValue(trimmed, "Course Link:")
			case hasHeaderField(trimmed, "Course Instructor:"):
				course.Instructor = headerValue(trimmed, "Course Instructor:")
			default:
				courseBody = append(courseBody, line)
			}
			continue
		}

		// A link line is only recognized directly under the lesson marker,
		// before any lesson text.
		if !current.bodyStarted && hasHeaderField(trimmed, "Lesson Link:") {
			current.link = headerValue(trimmed, "Lesson Link:")
			continue
		}
		if trimmed != "" {
			current.bodyStarted = true
		}
		current.body = append(current.body, line)
	}

	if course.Title == "" {
		return nil, fmt.Errorf("missing mandatory Course Title header")
	}

	parsed := &ParsedCourse{Course: course}
	index := 0

	if body := strings.TrimSpace(strings.Join(courseBody, "\n")); body != "" {
		for i, text := range chunker.Split(body) {
			if i == 0 {
				text = fmt.Sprintf("Course %s content: %s", course.Title, text)
			}
			parsed.Chunks = append(parsed.Chunks, store.Chunk{
				Content:     text,
				CourseTitle: course.Title,
				Index:       index,
			})
			index++
		}
	}

	for _, lesson := range lessons {
		parsed.Course.Lessons = append(parsed.Course.Lessons, store.Lesson{
			Number: lesson.number,
			Title:  lesson.title,
			Link:   lesson.link,
		})

		body := strings.TrimSpace(strings.Join(lesson.body, "\n"))
		if body == "" {
			continue
		}

		number := lesson.number
		for i, text := range chunker.Split(body) {
			if i == 0 {
				text = fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, number, text)
			}
			parsed.Chunks = append(parsed.Chunks, store.Chunk{
				Content:      text,
				CourseTitle:  course.Title,
				LessonNumber: &number,
				Index:        index,
			})
			index++
		}
	}

	return parsed, nil
}

func hasHeaderField(line, field string) bool {
	return len(line) >= len(field) && strings.EqualFold(line[:len(field)], field)
}

func headerValue(line, field string) string {
	return strings.TrimSpace(line[len(field):])
}
