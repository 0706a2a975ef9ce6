// Package api exposes the snippet manager over HTTP for local tooling.
package api

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"snips/internal/domain"
	"snips/internal/manager"
)

// Server handles HTTP requests for the snippet API.
type Server struct {
	mgr    *manager.Manager
	addr   string
	logger *zap.Logger
}

// New creates an API server over a manager.
func New(mgr *manager.Manager, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{mgr: mgr, addr: addr, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections", s.listCollections)
	mux.HandleFunc("GET /snippets", s.listSnippets)
	mux.HandleFunc("POST /snippets", s.createSnippet)
	mux.HandleFunc("POST /suggest", s.suggestMetadata)
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	s.logger.Info("starting server", zap.String("addr", s.addr))
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.ValidateSetup())
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.mgr.Collections()
	if err != nil {
		writeErr(w, err)
		return
	}
	if collections == nil {
		collections = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

func (s *Server) listSnippets(w http.ResponseWriter, r *http.Request) {
	collection := r.URL.Query().Get("collection")

	snippets, err := s.mgr.Snippets(collection)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snippets": snippets,
		"count":    len(snippets),
	})
}

// CreateSnippetRequest is the request body for creating a snippet.
type CreateSnippetRequest struct {
	Content     string `json:"content"`
	Name        string `json:"name,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
	Collection  string `json:"collection,omitempty"`
	Description string `json:"description,omitempty"`
	UseAI       bool   `json:"use_ai"`
	Overwrite   bool   `json:"overwrite"`
}

func (s *Server) createSnippet(w http.ResponseWriter, r *http.Request) {
	var req CreateSnippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.mgr.CreateSnippet(manager.CreateRequest{
		Content:     req.Content,
		Name:        req.Name,
		Keyword:     req.Keyword,
		Collection:  req.Collection,
		Description: req.Description,
		UseAI:       req.UseAI,
		Overwrite:   req.Overwrite,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// SuggestRequest is the request body for a read-only suggestion.
type SuggestRequest struct {
	Content string `json:"content"`
}

func (s *Server) suggestMetadata(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	suggestion, err := s.mgr.Suggestions(req.Content)
	if err != nil {
		writeErr(w, err)
		return
	}
	if suggestion == nil {
		writeJSON(w, http.StatusOK, map[string]any{"suggestion": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestion": suggestion})
}

// writeErr maps an error kind to an HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindDuplicate:
		status = http.StatusConflict
	case domain.KindRateLimit:
		status = http.StatusTooManyRequests
	case domain.KindAPI, domain.KindNetwork:
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
