package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"threadchat/internal/analytics"
	"threadchat/internal/chat"
	"threadchat/internal/store"
)

type createThreadRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	User      store.Message `json:"user"`
	Assistant store.Message `json:"assistant"`

	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if r.Body != nil {
		// An empty body means an untitled thread.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	t, err := s.store.CreateThread(r.Context(), req.Title)
	if err != nil {
		log.Printf("failed to create thread: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create thread")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.store.ListThreads(r.Context())
	if err != nil {
		log.Printf("failed to list threads: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list threads")
		return
	}
	if threads == nil {
		threads = []store.Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteThread(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, "thread not found")
			return
		}
		log.Printf("failed to delete thread %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete thread")
		return
	}
	s.dispatcher.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	msgs, err := s.store.ListMessages(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, "thread not found")
			return
		}
		log.Printf("failed to list messages for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content must not be empty")
		return
	}

	reply, err := s.dispatcher.Send(r.Context(), id, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrThreadNotFound):
			writeError(w, http.StatusNotFound, "thread not found")
		case errors.Is(err, chat.ErrModel):
			log.Printf("model failure on %s: %v", id, err)
			writeError(w, http.StatusBadGateway, "model invocation failed")
		default:
			log.Printf("failed to handle message on %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to handle message")
		}
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		User:             reply.User,
		Assistant:        reply.Assistant,
		Model:            reply.Model,
		PromptTokens:     reply.PromptTokens,
		CompletionTokens: reply.CompletionTokens,
		TotalTokens:      reply.TotalTokens,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotFound, "usage recording is disabled")
		return
	}

	target := time.Now().UTC()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		target = parsed
	}

	events, err := s.recorder.LoadInteractions()
	if err != nil {
		log.Printf("failed to load usage log: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load usage log")
		return
	}
	writeJSON(w, http.StatusOK, analytics.AnalyzeDailyLogs(events, target))
}
