package chat

import "github.com/coursemat/course-agent/tools"

// Response is the outcome of one answered query: the generated text, the
// course material that backed it, and the session the exchange was recorded
// under.
type Response struct {
	Answer    string
	Sources   []tools.Source
	SessionID string
}

// Stats summarizes the loaded catalog for the analytics endpoint.
type Stats struct {
	CourseCount  int
	CourseTitles []string
}
