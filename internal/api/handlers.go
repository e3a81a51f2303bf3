package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/equiprag/internal/chunker"
	"github.com/dshills/equiprag/internal/retriever"
	"github.com/dshills/equiprag/internal/storage"
	"github.com/dshills/equiprag/pkg/types"
)

// User-facing messages
const (
	MsgSearchUnavailable = "temporarily unable to search catalog"
	MsgNoResults         = "no matching equipment found"
	MsgEmbedUnavailable  = "temporarily unable to embed catalog text"
)

const healthTimeout = 3 * time.Second

// RetrieveRequest is the body of POST /retrieve
type RetrieveRequest struct {
	Question    string `json:"question"`
	TopK        int    `json:"top_k,omitempty"`
	Mode        string `json:"mode,omitempty"`
	RerankModel string `json:"rerank_model,omitempty"`
}

// RetrieveResponse is returned by POST /retrieve
type RetrieveResponse struct {
	Results    []types.RetrievalResult `json:"results"`
	Message    string                  `json:"message"`
	SearchMode string                  `json:"search_mode"`
	Intents    []retriever.Intent      `json:"intents,omitempty"`
	Reranked   int                     `json:"reranked"`
	Warnings   []string                `json:"warnings,omitempty"`
	DurationMS int64                   `json:"duration_ms"`
}

// IngestRequest is the body of POST /ingest
type IngestRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Mode   string `json:"mode,omitempty"`
}

// IngestResponse is returned by POST /ingest
type IngestResponse struct {
	Source        string   `json:"source"`
	ChunksWritten int      `json:"chunks_written"`
	ChunksFailed  int      `json:"chunks_failed"`
	Errors        []string `json:"errors,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Ollama   string `json:"ollama"`
	Version  string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Ollama: "ok", Version: Version}
	if s.deps.Catalog == nil {
		resp.Database = "unavailable"
	} else if _, err := s.deps.Catalog.GetStatus(ctx); err != nil {
		resp.Database = "unavailable"
		s.logger.Warn("health: database check failed", slog.String("error", err.Error()))
	}
	if s.deps.Models == nil {
		resp.Ollama = "unavailable"
	} else if err := s.deps.Models.Ping(ctx); err != nil {
		resp.Ollama = "unavailable"
		s.logger.Warn("health: ollama check failed", slog.String("error", err.Error()))
	}

	status := http.StatusOK
	switch {
	case resp.Database != "ok":
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	case resp.Ollama != "ok":
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, http.StatusBadRequest, types.ErrEmptyQuestion.Error())
		return
	}
	mode, err := retriever.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.TopK < 0 {
		writeError(w, r, http.StatusBadRequest, "top_k must not be negative")
		return
	}

	resp, err := s.deps.Retriever.Retrieve(r.Context(), retriever.Request{
		Question:    req.Question,
		TopK:        req.TopK,
		Mode:        mode,
		RerankModel: req.RerankModel,
		UseCache:    true,
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrEmptyQuestion):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrEmbeddingUnavailable), errors.Is(err, types.ErrSearchUnavailable):
			s.logger.Warn("retrieval unavailable",
				slog.String("request_id", RequestIDFrom(r.Context())),
				slog.String("error", err.Error()))
			writeError(w, r, http.StatusServiceUnavailable, MsgSearchUnavailable)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, r, http.StatusServiceUnavailable, MsgSearchUnavailable)
		default:
			s.logger.Error("retrieval failed", slog.String("error", err.Error()))
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	out := RetrieveResponse{
		Results:    resp.Results,
		SearchMode: string(resp.SearchMode),
		Intents:    resp.Intents,
		Reranked:   resp.Reranked,
		Warnings:   resp.Warnings,
		DurationMS: resp.Duration.Milliseconds(),
	}
	if out.Results == nil {
		out.Results = []types.RetrievalResult{}
	}
	if len(out.Results) == 0 {
		out.Message = MsgNoResults
	} else {
		out.Message = fmt.Sprintf("found %d matching chunks", len(out.Results))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeError(w, r, http.StatusBadRequest, types.ErrMissingSource.Error())
		return
	}
	mode, ok := chunker.ParseMode(req.Mode)
	if !ok {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unsupported chunking mode: %s", req.Mode))
		return
	}

	result, err := s.deps.Ingester.Ingest(r.Context(), req.Source, req.Text, mode)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrIngestInProgress):
			writeError(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, types.ErrEmptyContent), errors.Is(err, types.ErrMissingSource):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrNothingEmbedded):
			writeError(w, r, http.StatusServiceUnavailable, MsgEmbedUnavailable)
		default:
			s.logger.Error("ingest failed", slog.String("source", req.Source), slog.String("error", err.Error()))
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Source:        result.Source,
		ChunksWritten: result.ChunksWritten,
		ChunksFailed:  result.ChunksFailed,
		Errors:        result.ErrorMessages,
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.deps.Catalog.ListSources(r.Context())
	if err != nil {
		s.logger.Error("list sources failed", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if sources == nil {
		sources = []storage.SourceInfo{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if source == "" {
		writeError(w, r, http.StatusBadRequest, types.ErrMissingSource.Error())
		return
	}

	n, err := s.deps.Ingester.DeleteSource(r.Context(), source)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, r, http.StatusNotFound, fmt.Sprintf("source %s not found", source))
		case errors.Is(err, types.ErrIngestInProgress):
			writeError(w, r, http.StatusConflict, err.Error())
		default:
			s.logger.Error("delete source failed", slog.String("source", source), slog.String("error", err.Error()))
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": source, "chunks_deleted": n})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.deps.Models == nil {
		writeError(w, r, http.StatusServiceUnavailable, "model server not configured")
		return
	}
	models, err := s.deps.Models.ListModels(r.Context())
	if err != nil {
		s.logger.Warn("list models failed", slog.String("error", err.Error()))
		writeError(w, r, http.StatusServiceUnavailable, "model server unavailable")
		return
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": names})
}

// decode reads a JSON body into v, writing a 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
