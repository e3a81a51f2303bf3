// Package api serves the catalog retrieval REST surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/equiprag/internal/chunker"
	"github.com/dshills/equiprag/internal/indexer"
	"github.com/dshills/equiprag/internal/llm"
	"github.com/dshills/equiprag/internal/retriever"
	"github.com/dshills/equiprag/internal/storage"
)

// Version is reported by /health
var Version = "dev"

// Retriever answers retrieval requests
type Retriever interface {
	Retrieve(ctx context.Context, req retriever.Request) (*retriever.Response, error)
}

// Ingester writes and removes catalog sources
type Ingester interface {
	Ingest(ctx context.Context, source, text string, mode chunker.Mode) (*indexer.Result, error)
	DeleteSource(ctx context.Context, source string) (int, error)
}

// Catalog reports what is indexed
type Catalog interface {
	ListSources(ctx context.Context) ([]storage.SourceInfo, error)
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// Models lists generation models and checks the server is reachable
type Models interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
	Ping(ctx context.Context) error
}

// Deps are the services behind the handlers
type Deps struct {
	Retriever Retriever
	Ingester  Ingester
	Catalog   Catalog
	Models    Models
}

// Options configures a Server
type Options struct {
	// RateLimit is the sustained requests per second; 0 disables limiting
	RateLimit float64
	Burst     int

	// MaxBodyBytes bounds request bodies (default 8 MiB)
	MaxBodyBytes int64

	Logger *slog.Logger
}

const defaultMaxBodyBytes = 8 << 20

// Server is the REST API
type Server struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter
	handler http.Handler
}

// New builds a Server and its routes
func New(deps Deps, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: opts.Logger,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /retrieve", s.handleRetrieve)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /sources", s.handleListSources)
	mux.HandleFunc("DELETE /sources/{source...}", s.handleDeleteSource)
	mux.HandleFunc("GET /models", s.handleModels)

	s.handler = s.withRequestID(s.withLogging(s.withRateLimit(mux)))
	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("REST server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("REST server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestIDFrom(r.Context())})
}
