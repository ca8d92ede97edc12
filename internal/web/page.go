package web

import (
	_ "embed"
	"log"
	"net/http"
)

//go:embed index.html
var indexPage []byte

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(indexPage); err != nil {
		log.Printf("failed to write index page: %v", err)
	}
}
