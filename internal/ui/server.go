// Package ui serves the prediction form as server-rendered HTML plus a small
// JSON API over the same session controllers.
package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "heart-risk-dashboard/internal/common/errors"
	"heart-risk-dashboard/internal/common/logger"
	"heart-risk-dashboard/internal/common/observability"
	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/predict"
	"heart-risk-dashboard/internal/schema"
	"heart-risk-dashboard/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const DefaultCookieName = "heartrisk_session"

// Assets resolves the backend's static diagnostic images.
type Assets interface {
	Gallery() []predict.Image
}

type Options struct {
	Registry      *session.Registry
	Schema        *schema.Schema
	Assets        Assets
	Observability *observability.Observability
	Logger        logger.Logger
	CookieName    string
	// MetricsHandler is mounted at MetricsPath when both are set.
	MetricsPath    string
	MetricsHandler http.Handler
}

type Server struct {
	router     *chi.Mux
	registry   *session.Registry
	schema     *schema.Schema
	gallery    []predict.Image
	templates  *template.Template
	errors     *apperrors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
	cookieName string
	background sync.WaitGroup
}

func NewServer(opts Options) (*Server, error) {
	templates, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}

	s := &Server{
		router:     chi.NewRouter(),
		registry:   opts.Registry,
		schema:     opts.Schema,
		templates:  templates,
		errors:     apperrors.NewErrorHandler(opts.Logger),
		obs:        opts.Observability,
		logger:     opts.Logger,
		cookieName: opts.CookieName,
	}
	if opts.Assets != nil {
		s.gallery = opts.Assets.Gallery()
	}

	s.setupMiddleware()
	s.setupRoutes(opts.MetricsPath, opts.MetricsHandler)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Wait blocks until every prediction started from the HTML form has
// settled.
func (s *Server) Wait() {
	s.background.Wait()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes(metricsPath string, metricsHandler http.Handler) {
	s.router.Get("/healthz", s.handleHealth)
	if metricsPath != "" && metricsHandler != nil {
		s.router.Handle(metricsPath, metricsHandler)
	}
	s.router.Get("/api/schema", s.handleSchema)

	s.router.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/", s.handleIndex)
		r.Post("/fields/{key}", s.handleFieldChange)
		r.Post("/predict", s.handlePredict)
		r.Post("/notice/dismiss", s.handleDismiss)

		r.Get("/api/state", s.handleAPIState)
		r.Put("/api/fields/{key}", s.handleAPIFieldChange)
		r.Post("/api/predict", s.handleAPIPredict)
		r.Post("/api/notice/dismiss", s.handleAPIDismiss)
	})
}

// requestLogger logs each request and records it on the OpenTelemetry
// instruments under its route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.obs.RecordRequest(r.Context(), r.Method, route, status, duration)
		s.logger.Debug("HTTP request", map[string]interface{}{
			"method":      r.Method,
			"route":       route,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}

type controllerKey struct{}

// sessionMiddleware attaches the caller's form controller to the request
// context, issuing a session cookie on first contact.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(s.cookieName); err == nil && session.ValidID(c.Value) {
			id = c.Value
		}
		if id == "" {
			id = session.NewID()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctrl := s.registry.Get(r.Context(), id)
		ctx := context.WithValue(r.Context(), controllerKey{}, ctrl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func controllerFrom(ctx context.Context) *form.Controller {
	ctrl, _ := ctx.Value(controllerKey{}).(*form.Controller)
	return ctrl
}
