// Package api exposes the upload, process, and download endpoints over HTTP.
package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/model"
)

// EnrichFunc runs the enrichment pipeline over the dataset at path, persisting
// back to the same file.
type EnrichFunc func(ctx context.Context, path string, key config.Secret) (*model.RunSummary, error)

// CredentialFunc returns the default API key used when a request names none.
type CredentialFunc func() (config.Secret, error)

// Server handles the HTTP transport shell. Only one dataset is processed at
// a time.
type Server struct {
	cfg        config.ServerConfig
	enrich     EnrichFunc
	credential CredentialFunc
	log        *zap.Logger
	processing sync.Mutex
}

// New creates a Server. credential may be nil, in which case every process
// request must name a credential file.
func New(cfg config.ServerConfig, enrich EnrichFunc, credential CredentialFunc) *Server {
	return &Server{
		cfg:        cfg,
		enrich:     enrich,
		credential: credential,
		log:        zap.L().With(zap.String("component", "api")),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Post("/process", s.handleProcess)
	r.Get("/download", s.handleDownload)

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

func (s *Server) allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	allowed := s.cfg.AllowedExtensions
	if len(allowed) == 0 {
		allowed = []string{".xlsx", ".csv"}
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.cfg.MaxUploadMB
	if mb <= 0 {
		mb = 32
	}
	return int64(mb) << 20
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
