package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coursemat/course-agent/chat"
	"github.com/coursemat/course-agent/tools"
)

type stubRAG struct {
	answer    chat.Response
	answerErr error
	stats     chat.Stats
	statsErr  error
	loaded    int
	titles    []string
	loadErr   error
	loadDir   string
	cleared   bool
	clearErr  error
}

func (s *stubRAG) Answer(ctx context.Context, query, sessionID string) (chat.Response, error) {
	if s.answerErr != nil {
		return chat.Response{}, s.answerErr
	}
	return s.answer, nil
}

func (s *stubRAG) Analytics(ctx context.Context) (chat.Stats, error) {
	if s.statsErr != nil {
		return chat.Stats{}, s.statsErr
	}
	return s.stats, nil
}

func (s *stubRAG) LoadCourses(ctx context.Context, dir string) (int, []string, error) {
	s.loadDir = dir
	if s.loadErr != nil {
		return 0, nil, s.loadErr
	}
	return s.loaded, s.titles, nil
}

func (s *stubRAG) ClearData(ctx context.Context) error {
	s.cleared = true
	return s.clearErr
}

var _ RAG = (*stubRAG)(nil)

func newTestServer(svc RAG) *Server {
	return New(svc, "./docs", log.New(io.Discard, "", 0))
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&stubRAG{})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	svc := &stubRAG{answer: chat.Response{
		Answer:    "A union combines two sets.",
		Sources:   []tools.Source{{Label: "Intro to Sets - Lesson 1", Link: "https://example.com/sets/lesson1"}},
		SessionID: "session-1",
	}}
	server := newTestServer(svc)

	body := strings.NewReader(`{"query": "What is a union?"}`)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Answer  string `json:"answer"`
		Sources []struct {
			Text string `json:"text"`
			Link string `json:"link"`
		} `json:"sources"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Answer != "A union combines two sets." {
		t.Errorf("answer: %q", resp.Answer)
	}
	if resp.SessionID != "session-1" {
		t.Errorf("session id: %q", resp.SessionID)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Text != "Intro to Sets - Lesson 1" || resp.Sources[0].Link != "https://example.com/sets/lesson1" {
		t.Errorf("sources: %+v", resp.Sources)
	}
}

func TestQueryEndpointRequiresQuery(t *testing.T) {
	server := newTestServer(&stubRAG{})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "  "}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestQueryEndpointRejectsUnknownFields(t *testing.T) {
	server := newTestServer(&stubRAG{})

	body := strings.NewReader(`{"query": "q", "bogus": true}`)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestQueryEndpointServiceError(t *testing.T) {
	server := newTestServer(&stubRAG{answerErr: errors.New("generation failed")})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "q"}`)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected error message in body")
	}
}

func TestQueryEndpointWrongMethod(t *testing.T) {
	server := newTestServer(&stubRAG{})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/query", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow header: %q", allow)
	}
}

func TestCoursesEndpoint(t *testing.T) {
	svc := &stubRAG{stats: chat.Stats{CourseCount: 2, CourseTitles: []string{"Intro to Sets", "Graph Theory"}}}
	server := newTestServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	var resp struct {
		TotalCourses int      `json:"total_courses"`
		CourseTitles []string `json:"course_titles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalCourses != 2 || len(resp.CourseTitles) != 2 {
		t.Errorf("response: %+v", resp)
	}
}

func TestIngestEndpointDefaultsDocsDir(t *testing.T) {
	svc := &stubRAG{loaded: 1, titles: []string{"Intro to Sets"}}
	server := newTestServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}
	if svc.loadDir != "./docs" {
		t.Errorf("expected default docs dir, got %q", svc.loadDir)
	}

	var resp struct {
		CoursesLoaded int      `json:"courses_loaded"`
		CourseTitles  []string `json:"course_titles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CoursesLoaded != 1 {
		t.Errorf("courses loaded: %d", resp.CoursesLoaded)
	}
}

func TestIngestEndpointCustomDir(t *testing.T) {
	svc := &stubRAG{}
	server := newTestServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"dir": "/srv/courses"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if svc.loadDir != "/srv/courses" {
		t.Errorf("dir not forwarded: %q", svc.loadDir)
	}
}

func TestClearEndpointRequiresConfirm(t *testing.T) {
	svc := &stubRAG{}
	server := newTestServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clear", strings.NewReader(`{"confirm": false}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	if svc.cleared {
		t.Error("clear must not run without confirmation")
	}
}

func TestClearEndpointConfirmed(t *testing.T) {
	svc := &stubRAG{}
	server := newTestServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clear", strings.NewReader(`{"confirm": true}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !svc.cleared {
		t.Error("expected data cleared")
	}
}
