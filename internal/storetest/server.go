// Package storetest provides an in-memory fake LaBB-CAT server for
// end-to-end tests of the labbcat client and CLI. It answers from a
// Fixtures corpus and keeps track of the tasks, uploads, and deletions
// its clients ask for.
package storetest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

// DefaultVersion is the server version the fake reports.
const DefaultVersion = "20250430.1200"

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported in every envelope.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithCredentials makes the server require HTTP Basic authentication.
func WithCredentials(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRunningTasks makes every task the server starts stay running until a
// client cancels it.
func WithRunningTasks() Option {
	return func(s *Server) {
		s.holdTasks = true
	}
}

// Server is a running fake LaBB-CAT server.
type Server struct {
	*httptest.Server

	version  string
	username string
	password string
	logger   zerolog.Logger
	// holdTasks keeps new tasks running
	holdTasks bool

	mu         sync.Mutex
	fixtures   *Fixtures
	nextThread int
	tasks      map[string]*labbcat.TaskStatus
	searches   map[string]string
	released   map[string]bool
	cancelled  map[string]bool
	uploads    map[string]*labbcat.Upload
	uploaded   []string
}

// New starts a fake server answering from fixtures. Close it when done.
func New(fixtures *Fixtures, opts ...Option) *Server {
	s := &Server{
		version:   DefaultVersion,
		logger:    zerolog.Nop(),
		fixtures:  fixtures,
		tasks:     map[string]*labbcat.TaskStatus{},
		searches:  map[string]string{},
		released:  map[string]bool{},
		cancelled: map[string]bool{},
		uploads:   map[string]*labbcat.Upload{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// BaseURL returns the server's base URL, with a trailing slash.
func (s *Server) BaseURL() string {
	return s.Server.URL + "/"
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recovery)
	r.Use(s.logging)
	r.Use(chimiddleware.StripSlashes)
	r.Use(s.basicAuth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, http.StatusNotFound, "Not found: "+r.URL.Path)
	})

	r.Route("/api/store", func(r chi.Router) {
		r.Get("/", s.probe)
		r.Get("/getId", s.getID)
		r.Get("/getLayerIds", s.getLayerIDs)
		r.Get("/getLayers", s.getLayers)
		r.Get("/getLayer", s.getLayer)
		r.Get("/getCorpusIds", s.getCorpusIDs)
		r.Get("/getParticipantIds", s.getParticipantIDs)
		r.Get("/getParticipant", s.getParticipant)
		r.Get("/countMatchingParticipantIds", s.countMatchingParticipantIDs)
		r.Get("/getMatchingParticipantIds", s.getMatchingParticipantIDs)
		r.Get("/getTranscriptIds", s.getTranscriptIDs)
		r.Get("/getTranscriptIdsInCorpus", s.getTranscriptIDsInCorpus)
		r.Get("/getTranscriptIdsWithParticipant", s.getTranscriptIDsWithParticipant)
		r.Get("/countMatchingTranscriptIds", s.countMatchingTranscriptIDs)
		r.Get("/getMatchingTranscriptIds", s.getMatchingTranscriptIDs)
		r.Get("/countAnnotations", s.countAnnotations)
		r.Get("/getAnnotations", s.getAnnotations)
	})
	r.Get("/doc", s.info)

	r.Get("/search", s.search)
	r.Get("/thread", s.thread)
	r.Get("/threads", s.threads)
	r.Get("/resultsStream", s.resultsStream)
	r.Get("/soundfragment", s.soundFragment)

	r.Post("/api/edit/transcript/upload", s.startUpload)
	r.Put("/api/edit/transcript/upload/{id}", s.uploadParameters)
	r.Delete("/api/edit/transcript/upload/{id}", s.cancelUpload)
	r.Post("/api/edit/store/deleteTranscript", s.deleteTranscript)
	r.Post("/api/edit/store/deleteParticipant", s.deleteParticipant)
	r.Post("/admin/layers/regenerate", s.regenerateLayer)

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/corpora", adminList(s, func(f *Fixtures) interface{} { return f.Corpora }))
		r.Get("/projects", adminList(s, func(f *Fixtures) interface{} { return f.Projects }))
		r.Get("/mediatracks", adminList(s, func(f *Fixtures) interface{} { return f.MediaTracks }))
		r.Get("/roles", adminList(s, func(f *Fixtures) interface{} { return f.Roles }))
		r.Get("/users", adminList(s, func(f *Fixtures) interface{} { return f.Users }))
	})

	return r
}

// Released reports whether a client released the task.
func (s *Server) Released(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released[threadID]
}

// Cancelled reports whether a client cancelled the task.
func (s *Server) Cancelled(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[threadID]
}

// SearchPattern returns the pattern JSON sent for a search task.
func (s *Server) SearchPattern(threadID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches[threadID]
}

// Uploaded returns the names of the transcript files received.
func (s *Server) Uploaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded...)
}

// HasTranscript reports whether the transcript is still in the store.
func (s *Server) HasTranscript(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixtures.transcript(id) != nil
}

// AddTask registers a task, as if another client had started it.
func (s *Server) AddTask(status labbcat.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[status.ThreadID] = &status
}

// newTask registers a task, finished unless WithRunningTasks is set, and
// returns its thread ID. Callers hold s.mu.
func (s *Server) newTask(name, status string) string {
	s.nextThread++
	threadID := strconv.Itoa(s.nextThread)
	s.tasks[threadID] = &labbcat.TaskStatus{
		ThreadID:        threadID,
		ThreadName:      name,
		Running:         false,
		PercentComplete: 100,
		Status:          status,
	}
	if s.holdTasks {
		task := s.tasks[threadID]
		task.Running = true
		task.PercentComplete = 50
		task.Status = "Running"
		task.RefreshSeconds = 1
	}
	return threadID
}
