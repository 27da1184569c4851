// Package web serves the browser UI of the client on a local address.
package web

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/skinguardian/client/config"
	"github.com/skinguardian/client/internal/gate"
	"github.com/skinguardian/client/internal/report"
	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/internal/session"
	"github.com/skinguardian/client/internal/storage"
)

// Deps are the components the UI drives. Images and Reports are optional.
type Deps struct {
	Session   *session.Store
	Gate      *gate.Gate
	Auth      *services.AuthService
	Diagnosis *services.DiagnosisService
	Resources *services.ResourceSync
	Images    *storage.Resolver
	Reports   *report.Generator
	Logger    *slog.Logger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	handler    http.Handler
	templates  map[gate.Page]*template.Template

	session   *session.Store
	gate      *gate.Gate
	auth      *services.AuthService
	diagnosis *services.DiagnosisService
	resources *services.ResourceSync
	images    *storage.Resolver
	reports   *report.Generator
	logger    *slog.Logger

	maxUploadBytes int64
}

// New constructs a Server with basic middleware and defaults.
func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Session == nil || deps.Gate == nil || deps.Auth == nil || deps.Diagnosis == nil || deps.Resources == nil {
		return nil, errors.New("web: session, gate, auth, diagnosis and resources are required")
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}

	s := &Server{
		templates:      templates,
		session:        deps.Session,
		gate:           deps.Gate,
		auth:           deps.Auth,
		diagnosis:      deps.Diagnosis,
		resources:      deps.Resources,
		images:         deps.Images,
		reports:        deps.Reports,
		logger:         logger,
		maxUploadBytes: maxUpload,
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	router.Get("/healthz", healthz)
	router.Get(gate.PageLogin.Path(), s.handleShowCredentials(gate.PageLogin))
	router.Post(gate.PageLogin.Path(), s.handleCredentials(gate.PageLogin))
	router.Get(gate.PageSignUp.Path(), s.handleShowCredentials(gate.PageSignUp))
	router.Post(gate.PageSignUp.Path(), s.handleCredentials(gate.PageSignUp))
	router.Get(gate.PageProfile.Path(), s.handleProfilePage)
	router.Post(gate.PageProfile.Path(), s.handleCreateProfile)
	router.Get(gate.PageNewDiagnosis.Path(), s.handleDiagnosisPage)
	router.Post(gate.PageNewDiagnosis.Path(), s.handleSubmitDiagnosis)
	router.Get(gate.PageHistory.Path(), s.handleHistoryPage)
	router.Get("/history/report.pdf", s.handleHistoryReport)
	router.Get("/images/{diagnosisId}", s.handleImage)

	s.router = router
	s.handler = router
	if key := strings.TrimSpace(cfg.CSRFKey); key != "" {
		sum := sha256.Sum256([]byte(key))
		protect := csrf.Protect(sum[:], csrf.Secure(false), csrf.Path("/"))
		s.handler = plaintextHTTP(protect(router))
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, port),
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the full handler chain, CSRF protection included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// plaintextHTTP marks requests that arrived without TLS so the CSRF
// middleware skips its HTTPS-only referer check.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
