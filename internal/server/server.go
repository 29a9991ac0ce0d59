// Package server exposes the gateway over HTTP: the chat pipeline, the
// model catalog, audit log queries, the knowledge-base file tree with
// versioning, and index management. Routes that need the RAG subsystem
// answer 503 when it is disabled; the file tree works regardless.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llm-privacy-gateway/internal/apperr"
	"llm-privacy-gateway/internal/files"
	"llm-privacy-gateway/internal/indexer"
	"llm-privacy-gateway/internal/llm"
	"llm-privacy-gateway/internal/logger"
	"llm-privacy-gateway/internal/logstore"
	"llm-privacy-gateway/internal/metrics"
	"llm-privacy-gateway/internal/versioning"
)

// maxUploadMemory bounds the in-memory part of multipart parsing.
const maxUploadMemory = 32 << 20

// ChatPipeline handles one chat completion end to end.
type ChatPipeline interface {
	ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// DocumentAdder inserts a document into the knowledge base.
type DocumentAdder interface {
	AddDocument(ctx context.Context, id, content string, metadata map[string]any) error
}

// LogQuerier reads the audit log.
type LogQuerier interface {
	QueryLogs(ctx context.Context, q logstore.Query) (*logstore.Response, error)
}

// HealthChecker probes the upstream completion service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// ModelInfo is one entry of the model catalog.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
}

// modelCatalog lists the models the upstream router is configured for.
var modelCatalog = []ModelInfo{
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "Anthropic", Description: "最新のClaude 3.5 Sonnet - 高性能バランス型"},
	{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: "Anthropic", Description: "最も高性能なClaudeモデル"},
	{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", Provider: "Anthropic", Description: "高速・低コストなClaudeモデル"},
	{ID: "gpt-4-turbo-preview", Name: "GPT-4 Turbo", Provider: "OpenAI", Description: "最新のGPT-4"},
	{ID: "gpt-4", Name: "GPT-4", Provider: "OpenAI", Description: "OpenAIの最高性能モデル"},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: "OpenAI", Description: "高速で低コスト"},
}

// Server holds the handler dependencies. retriever and indexer are nil when
// the RAG subsystem failed to initialize; logs and health may be nil in tests.
type Server struct {
	pipeline  ChatPipeline
	retriever DocumentAdder
	files     *files.Store
	indexer   *indexer.Manager
	logs      LogQuerier
	health    HealthChecker
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New assembles a Server.
func New(pipeline ChatPipeline, retriever DocumentAdder, fileStore *files.Store, idx *indexer.Manager, logs LogQuerier, health HealthChecker, m *metrics.Metrics) *Server {
	return &Server{
		pipeline:  pipeline,
		retriever: retriever,
		files:     fileStore,
		indexer:   idx,
		logs:      logs,
		health:    health,
		metrics:   m,
		log:       logger.Component("server"),
	}
}

// ragEnabled reports whether the RAG subsystem is available.
func (s *Server) ragEnabled() bool {
	return s.retriever != nil && s.indexer != nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(s.observe)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat/completions", s.handleChatCompletion)
		r.Get("/models", s.handleListModels)
		r.Post("/documents", s.handleAddDocument)
		r.Get("/logs", s.handleQueryLogs)

		r.Route("/rag", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Get("/files", s.handleListFiles)
			r.Delete("/files/{name}", s.handleDeleteFile)
			r.Post("/mkdir", s.handleMkdir)
			r.Post("/files/create", s.handleCreateFile)
			r.Get("/files/{path}/versions", s.handleVersions)
			r.Post("/files/{path}/rollback", s.handleRollback)
			r.Post("/index", s.handleTriggerIndex)
			r.Get("/status", s.handleIndexStatus)
			r.Put("/config", s.handleUpdateConfig)
		})
	})
	r.Get("/api/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// observe logs each request and feeds the request metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("request")
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(ww.Status())).Inc()
			s.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
		}
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps err to its status code and returns the short classified
// message only; the cause stays in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}
	s.writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	var req llm.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Invalid request body", err))
		return
	}
	resp, err := s.pipeline.ChatCompletion(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, modelCatalog)
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	if !s.ragEnabled() {
		s.writeError(w, r, apperr.New(apperr.ServiceUnavailable, "RAG engine not available"))
		return
	}
	var payload struct {
		ID       *string `json:"id"`
		Title    string  `json:"title"`
		Content  string  `json:"content"`
		Category *string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Invalid request body", err))
		return
	}

	id := uuid.NewString()
	if payload.ID != nil && *payload.ID != "" {
		id = *payload.ID
	}
	metadata := map[string]any{"title": payload.Title}
	if payload.Category != nil {
		metadata["category"] = *payload.Category
	}
	if err := s.retriever.AddDocument(r.Context(), id, payload.Content, metadata); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "id": id})
}

func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	q := logstore.Query{}
	params := r.URL.Query()
	if v := params.Get("start_date"); v != "" {
		q.StartDate = &v
	}
	if v := params.Get("end_date"); v != "" {
		q.EndDate = &v
	}
	if v := params.Get("search_term"); v != "" {
		q.SearchTerm = &v
	}
	if v := params.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = &n
		}
	}
	if v := params.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Offset = &n
		}
	}

	resp, err := s.logs.QueryLogs(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Invalid multipart form", err))
		return
	}
	subdir := r.URL.Query().Get("path")

	var uploaded []string
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Unreadable file part", err))
				return
			}
			data, err := io.ReadAll(f)
			f.Close() //nolint:errcheck
			if err != nil {
				s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Unreadable file part", err))
				return
			}

			relative := header.Filename
			if subdir != "" {
				relative = subdir + "/" + header.Filename
			}
			if err := s.files.SaveUpload(relative, data); err != nil {
				s.writeError(w, r, err)
				return
			}
			uploaded = append(uploaded, header.Filename)
		}
	}
	if uploaded == nil {
		uploaded = []string{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"uploaded_files":     uploaded,
		"total_files_in_dir": s.files.CountFiles(subdir),
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.files.List(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.files.Delete(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "path": path})
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Invalid request body", err))
		return
	}
	if err := s.files.Mkdir(payload.Path); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "created"})
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Invalid request body", err))
		return
	}
	if err := s.files.CreateFile(payload.Path, payload.Content); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "created"})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	path, err := s.files.SafeResolve(chi.URLParam(r, "path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := versioning.GetHistory(path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Version int  `json:"version"`
		Reindex bool `json:"reindex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Invalid request body", err))
		return
	}

	path, err := s.files.SafeResolve(chi.URLParam(r, "path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := versioning.Rollback(path, payload.Version); err != nil {
		s.writeError(w, r, err)
		return
	}

	reindexTriggered := false
	if payload.Reindex && s.indexer != nil {
		if err := s.indexer.Trigger(context.WithoutCancel(r.Context())); err != nil {
			if !errors.Is(err, indexer.ErrAlreadyIndexing) {
				s.writeError(w, r, err)
				return
			}
		} else {
			reindexTriggered = true
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":            "rolled_back",
		"rolled_back_to":    payload.Version,
		"reindex_triggered": reindexTriggered,
	})
}

func (s *Server) handleTriggerIndex(w http.ResponseWriter, r *http.Request) {
	if !s.ragEnabled() {
		s.writeError(w, r, apperr.New(apperr.ServiceUnavailable, "RAG engine not available"))
		return
	}
	if err := s.indexer.Trigger(context.WithoutCancel(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "indexing_started"})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	if !s.ragEnabled() {
		s.writeError(w, r, apperr.New(apperr.ServiceUnavailable, "RAG engine not available"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.indexer.Status())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if !s.ragEnabled() {
		s.writeError(w, r, apperr.New(apperr.ServiceUnavailable, "RAG engine not available"))
		return
	}
	var payload struct {
		AutoIndexIntervalMinutes int `json:"auto_index_interval_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.BadRequest, "Invalid request body", err))
		return
	}
	if payload.AutoIndexIntervalMinutes <= 0 {
		s.writeError(w, r, apperr.New(apperr.BadRequest, "auto_index_interval_minutes must be positive"))
		return
	}
	s.indexer.SetInterval(payload.AutoIndexIntervalMinutes)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":                      "updated",
		"auto_index_interval_minutes": payload.AutoIndexIntervalMinutes,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	litellmHealthy := false
	if s.health != nil {
		litellmHealthy = s.health.HealthCheck(r.Context())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]bool{"litellm": litellmHealthy},
	})
}
