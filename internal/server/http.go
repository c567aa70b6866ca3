package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/core"
	"github.com/joseph-ayodele/docrefine/internal/entity"
	"github.com/joseph-ayodele/docrefine/internal/export"
	"github.com/joseph-ayodele/docrefine/internal/repository"
)

// Submitter accepts an upload and schedules its rewrite.
type Submitter interface {
	Submit(ctx context.Context, up core.Upload) (*entity.Document, error)
}

// Config holds the HTTP layer settings.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
}

// Server exposes the document API over HTTP.
type Server struct {
	cfg       Config
	submitter Submitter
	repo      repository.DocumentRepository
	exporter  *export.Service
	logger    *slog.Logger
	now       func() time.Time
}

func NewServer(cfg Config, submitter Submitter, repo repository.DocumentRepository, exporter *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Server{
		cfg:       cfg,
		submitter: submitter,
		repo:      repo,
		exporter:  exporter,
		logger:    logger,
		now:       time.Now,
	}
}

// Routes returns the router. Every route is served both at the root and under /api.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", s.register)
	s.register(r)
	return r
}

func (s *Server) register(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/documents", s.handleListDocuments)
	r.Get("/documents/export", s.handleExportDocuments)
	r.Route("/document/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetDocument)
		r.Delete("/", s.handleDeleteDocument)
		r.Get("/download", s.handleDownload)
	})
}

// NewHTTPServer wraps handler with the configured timeouts.
func NewHTTPServer(addr string, handler http.Handler, cfg common.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		reqID := middleware.GetReqID(r.Context())
		ctx := common.WithRequestID(r.Context(), reqID)

		next.ServeHTTP(ww, r.WithContext(ctx))

		s.logger.Info("http.request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Message string `json:"message"`
}

// writeError maps err onto a status code and a client-safe message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("http.request.error", "req_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
	} else {
		s.logger.Warn("http.request.rejected", "req_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, errorResponse{Message: common.PublicMessage(err)})
}
