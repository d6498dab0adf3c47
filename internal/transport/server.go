package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aarchijain1/custom-rag-engine/internal/loader"
	"github.com/aarchijain1/custom-rag-engine/internal/store"
)

// DocumentStore is the slice of the retrieval store the server exposes.
type DocumentStore interface {
	AddDocument(ctx context.Context, id, text string, metadata map[string]any) (int, error)
	AddDocuments(ctx context.Context, docs []store.Document) store.BatchResult
	Search(ctx context.Context, query string, k int) ([]store.SearchResult, error)
	DeleteDocument(id string) (bool, error)
	ClearAll() error
	Stats() (store.Stats, error)
}

// DocumentLoader loads documents from disk on the server's host.
type DocumentLoader interface {
	LoadFile(path string) (store.Document, error)
	LoadDirectory(root string, recursive bool) ([]store.Document, []error)
}

// Server exposes the retrieval store and document loader as named tools
// over HTTP. A tool call failing produces an error response, never a
// process crash.
type Server struct {
	store  DocumentStore
	loader DocumentLoader
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a tool server with the given dependencies.
func NewServer(st DocumentStore, ld DocumentLoader, logger *zap.Logger) *Server {
	return &Server{store: st, loader: ld, logger: logger}
}

// Handler builds the HTTP routing for the tool catalogue.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/", s.handleHealth)
	r.Post("/tools/call", s.handleToolCall)
	r.Post("/shutdown", s.handleShutdown)
	return r
}

// Start serves on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{Addr: addr, Handler: s.Handler()}
	s.logger.Info("tool server listening", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type toolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		s.logger.Error("health: stats failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": stats})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("shutdown requested")
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			s.logger.Error("shutdown failed", zap.Error(err))
		}
	}()
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "missing tool name")
		return
	}
	if len(req.Arguments) == 0 {
		req.Arguments = json.RawMessage("{}")
	}

	s.logger.Debug("tool call", zap.String("tool", req.Name))
	result, err := s.dispatch(r.Context(), req.Name, req.Arguments)
	if err != nil {
		if _, unknown := err.(*unknownToolError); unknown {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("tool failed", zap.String("tool", req.Name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"result": result})
}

type unknownToolError struct{ name string }

func (e *unknownToolError) Error() string { return fmt.Sprintf("unknown tool: %s", e.name) }

func (s *Server) dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case "search_documents":
		var a struct {
			Query string `json:"query"`
			K     int    `json:"k"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		if a.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		results, err := s.store.Search(ctx, a.Query, a.K)
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []store.SearchResult{}
		}
		return results, nil

	case "add_document":
		var a struct {
			DocID    string         `json:"doc_id"`
			Text     string         `json:"text"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		if a.DocID == "" {
			return nil, fmt.Errorf("doc_id is required")
		}
		n, err := s.store.AddDocument(ctx, a.DocID, a.Text, a.Metadata)
		if err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "doc_id": a.DocID, "chunks_created": n}, nil

	case "add_documents":
		var a struct {
			Documents []store.Document `json:"documents"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		return s.store.AddDocuments(ctx, a.Documents), nil

	case "delete_document":
		var a struct {
			DocID string `json:"doc_id"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		deleted, err := s.store.DeleteDocument(a.DocID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": deleted}, nil

	case "clear_vector_store":
		if err := s.store.ClearAll(); err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "message": "vector store cleared"}, nil

	case "get_vector_store_stats":
		return s.store.Stats()

	case "load_file":
		var a struct {
			FilePath string `json:"file_path"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		return s.loader.LoadFile(a.FilePath)

	case "load_directory":
		var a struct {
			Path      string `json:"path"`
			Recursive *bool  `json:"recursive"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		recursive := true
		if a.Recursive != nil {
			recursive = *a.Recursive
		}
		docs, loadErrs := s.loader.LoadDirectory(a.Path, recursive)
		if docs == nil {
			docs = []store.Document{}
		}
		errStrings := make([]string, 0, len(loadErrs))
		for _, e := range loadErrs {
			errStrings = append(errStrings, e.Error())
		}
		return map[string]any{"documents": docs, "errors": errStrings}, nil

	case "get_supported_extensions":
		return loader.SupportedExtensions, nil

	default:
		return nil, &unknownToolError{name: name}
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
