// Package api exposes the HTTP surface over the course-materials assistant.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/coursemat/course-agent/chat"
)

// RAG is the slice of the chat service the HTTP layer needs.
type RAG interface {
	Answer(ctx context.Context, query, sessionID string) (chat.Response, error)
	Analytics(ctx context.Context) (chat.Stats, error)
	LoadCourses(ctx context.Context, dir string) (int, []string, error)
	ClearData(ctx context.Context) error
}

// Server exposes HTTP handlers for querying and managing course material.
type Server struct {
	svc     RAG
	docsDir string
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type querySource struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

type queryResponse struct {
	Answer    string        `json:"answer"`
	Sources   []querySource `json:"sources"`
	SessionID string        `json:"session_id"`
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type ingestResponse struct {
	CoursesLoaded int      `json:"courses_loaded"`
	CourseTitles  []string `json:"course_titles"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

// New constructs a Server answering queries through the provided service.
// docsDir is the default ingestion directory when a request names none.
func New(svc RAG, docsDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{svc: svc, docsDir: docsDir, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/courses", s.handleCourses)
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/clear", s.handleClear)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}

	resp, err := s.svc.Answer(r.Context(), req.Query, req.SessionID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("answer query: %w", err))
		return
	}

	sources := make([]querySource, len(resp.Sources))
	for i, source := range resp.Sources {
		sources[i] = querySource{Text: source.Label, Link: source.Link}
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Answer:    resp.Answer,
		Sources:   sources,
		SessionID: resp.SessionID,
	})
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	stats, err := s.svc.Analytics(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("course analytics: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, coursesResponse{
		TotalCourses: stats.CourseCount,
		CourseTitles: stats.CourseTitles,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.docsDir
	}

	loaded, titles, err := s.svc.LoadCourses(r.Context(), dir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("load courses: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{CoursesLoaded: loaded, CourseTitles: titles})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("confirm must be true to clear data"))
		return
	}

	if err := s.svc.ClearData(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear data: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "course data cleared"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
