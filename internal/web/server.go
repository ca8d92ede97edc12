package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"threadchat/internal/chat"
	"threadchat/internal/storage"
	"threadchat/internal/store"
)

// Server is the HTTP chat surface: a small JSON API plus the embedded
// single-page UI on /.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	dispatcher *chat.Dispatcher
	recorder   storage.Recorder
}

func NewServer(addr string, st *store.Store, dispatcher *chat.Dispatcher, recorder storage.Recorder) *Server {
	s := &Server{
		store:      st,
		dispatcher: dispatcher,
		recorder:   recorder,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/threads", s.handleCreateThread).Methods(http.MethodPost)
	r.HandleFunc("/api/threads", s.handleListThreads).Methods(http.MethodGet)
	r.HandleFunc("/api/threads/{id}", s.handleDeleteThread).Methods(http.MethodDelete)
	r.HandleFunc("/api/threads/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/api/threads/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	log.Printf("🌐 Web server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
