// Package server is a reference implementation of the ClassTop sync
// wire contract, backed by an in-memory per-client store. It exists for
// local development and end-to-end tests; the production management
// server is a separate project.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/classtop/classtop-sync/internal/syncer"
)

// clientRecord holds one registered client's snapshot.
type clientRecord struct {
	Name    string
	Courses []syncer.WireCourse
	Entries []syncer.WireEntry
}

// Server holds all registered clients and their datasets.
type Server struct {
	mu      sync.RWMutex
	clients map[string]*clientRecord
	logger  *slog.Logger
}

// New creates an empty server.
func New(logger *slog.Logger) *Server {
	return &Server{
		clients: make(map[string]*clientRecord),
		logger:  logger,
	}
}

// Router builds the HTTP routes for the sync wire contract.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/clients/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/api/clients/{uuid}/courses", s.handleCourses).Methods(http.MethodGet)
	r.HandleFunc("/api/clients/{uuid}/schedule", s.handleSchedule).Methods(http.MethodGet)

	return r
}

// response is the envelope every endpoint writes.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("writing response failed", slog.Any("error", err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	clients := len(s.clients)
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]interface{}{"status": "ok", "clients": clients},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req syncer.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, response{Message: "invalid request body"})
		return
	}

	if req.UUID == "" {
		s.writeJSON(w, http.StatusOK, response{Message: "uuid is required"})
		return
	}

	s.mu.Lock()

	rec, ok := s.clients[req.UUID]
	if !ok {
		rec = &clientRecord{}
		s.clients[req.UUID] = rec
	}

	rec.Name = req.Name

	s.mu.Unlock()

	s.logger.Info("client registered",
		slog.String("uuid", req.UUID),
		slog.String("name", req.Name))

	s.writeJSON(w, http.StatusOK, response{Success: true, Message: "registered"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncer.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, response{Message: "invalid request body"})
		return
	}

	if req.ClientUUID == "" {
		s.writeJSON(w, http.StatusOK, response{Message: "client_uuid is required"})
		return
	}

	s.mu.Lock()

	rec, ok := s.clients[req.ClientUUID]
	if !ok {
		rec = &clientRecord{Name: fmt.Sprintf("client-%s", req.ClientUUID)}
		s.clients[req.ClientUUID] = rec
	}

	// A sync replaces the stored snapshot wholesale; upload is
	// all-or-nothing and idempotent.
	rec.Courses = req.Courses
	rec.Entries = req.Entries

	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data: syncer.SyncCounts{
			SyncedCourses: len(req.Courses),
			SyncedEntries: len(req.Entries),
		},
	})
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	clientUUID := mux.Vars(r)["uuid"]

	s.mu.RLock()
	rec := s.clients[clientUUID]

	courses := []syncer.WireCourse{}
	if rec != nil {
		courses = append(courses, rec.Courses...)
	}
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]interface{}{"courses": courses},
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	clientUUID := mux.Vars(r)["uuid"]

	s.mu.RLock()
	rec := s.clients[clientUUID]

	entries := []syncer.WireEntry{}
	if rec != nil {
		entries = append(entries, rec.Entries...)
	}
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]interface{}{"schedule_entries": entries},
	})
}

// SeedClient installs a dataset for a client directly, bypassing the
// HTTP surface. Test helper.
func (s *Server) SeedClient(clientUUID, name string, courses []syncer.WireCourse, entries []syncer.WireEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[clientUUID] = &clientRecord{Name: name, Courses: courses, Entries: entries}
}

// ClientSnapshot returns a copy of what the server currently stores
// for a client. Test helper.
func (s *Server) ClientSnapshot(clientUUID string) ([]syncer.WireCourse, []syncer.WireEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.clients[clientUUID]
	if !ok {
		return nil, nil, false
	}

	courses := append([]syncer.WireCourse(nil), rec.Courses...)
	entries := append([]syncer.WireEntry(nil), rec.Entries...)

	return courses, entries, true
}
