// Package store persists course material in two pgvector-backed collections:
// a catalog keyed by course title and a content table of embedded text chunks.
package store

import "errors"

// ErrCourseNotFound reports that fuzzy course-name resolution produced no
// candidate. Callers distinguish it from query failures with errors.Is.
var ErrCourseNotFound = errors.New("no matching course")

type Lesson struct {
	Number int
	Title  string
	Link   string
}

// Course title is the primary key across the whole store.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
}

// Chunk is one contextualized span of lesson text. LessonNumber is nil for
// course-level content. Index runs across the whole course, so the triple
// (CourseTitle, LessonNumber, Index) identifies the chunk.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Index        int
}

// SearchResult is one content hit. Distance is the raw vector distance, lower
// is better.
type SearchResult struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Distance     float64
}

// SearchOptions narrows a content search. CourseName is resolved against the
// catalog before filtering; Limit falls back to the store default when zero.
type SearchOptions struct {
	CourseName   string
	LessonNumber *int
	Limit        int
}
