package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"askmynotes/internal/metrics"
	"askmynotes/internal/ratelimit"
	"askmynotes/internal/util"
	"askmynotes/services/web/internal/app"
	"askmynotes/services/web/internal/view"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App               *app.App
	Renderer          *view.Renderer
	Metrics           *metrics.Collector
	Logger            *slog.Logger
	TrustedProxies    *util.TrustedProxies
	CookieSecure      bool
	RememberTTL       time.Duration
	MaxUploadBytes    int64
	AllowedExtensions []string

	RedisAddr                  string
	RedisPassword              string
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
	GuestRateLimitPerMinute    int
}

// Server exposes the web front's pages and form handlers.
type Server struct {
	app             *app.App
	views           *view.Renderer
	metrics         *metrics.Collector
	logger          *slog.Logger
	trusted         *util.TrustedProxies
	cookieSecure    bool
	rememberTTL     time.Duration
	maxUploadBytes  int64
	accept          string
	mux             *http.ServeMux
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
	guestLimiter    *ratelimit.FixedWindowLimiter
	now             func() time.Time
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	guestLimit := cfg.GuestRateLimitPerMinute
	if guestLimit <= 0 {
		guestLimit = 20
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := ratelimit.DefaultPrefix + ":web:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		_ = loginLimiter.Close()
		return nil, err
	}
	guestLimiter, err := newLimiter("guest", guestLimit)
	if err != nil {
		_ = loginLimiter.Close()
		_ = registerLimiter.Close()
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rememberTTL := cfg.RememberTTL
	if rememberTTL <= 0 {
		rememberTTL = 30 * 24 * time.Hour
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = []string{"pdf", "txt"}
	}
	s := &Server{
		app:             cfg.App,
		views:           cfg.Renderer,
		metrics:         cfg.Metrics,
		logger:          logger,
		trusted:         cfg.TrustedProxies,
		cookieSecure:    cfg.CookieSecure,
		rememberTTL:     rememberTTL,
		maxUploadBytes:  maxUpload,
		accept:          view.AcceptList(exts),
		mux:             http.NewServeMux(),
		loginLimiter:    loginLimiter,
		registerLimiter: registerLimiter,
		guestLimiter:    guestLimiter,
		now:             time.Now,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithRequestLog("web", h)
	h = util.WithRequestID(h)
	h = util.WithSecurityHeaders(h)
	return s.withLogger(h)
}

// Close releases the rate limiter clients.
func (s *Server) Close() error {
	return errors.Join(s.loginLimiter.Close(), s.registerLimiter.Close(), s.guestLimiter.Close())
}

func (s *Server) routes() {
	s.handle("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.handle("GET /{$}", s.handleIndex)
	s.handle("GET /forgot-password", s.handleForgotPassword)
	s.handle("GET /terms", s.handleTerms)

	// session
	s.handle("POST /login", s.handleLogin)
	s.handle("POST /register", s.handleRegister)
	s.handle("POST /guest", s.handleGuest)
	s.handle("POST /logout", s.handleLogout)

	// workspace (session required)
	s.handle("POST /subjects", s.withWorkspace(s.handleCreateSubject))
	s.handle("POST /subjects/delete", s.withWorkspace(s.handleDeleteSubject))
	s.handle("POST /uploads/subject", s.withWorkspace(s.handleSelectUploadSubject))
	s.handle("POST /uploads", s.withWorkspace(s.handleUpload))
	s.handle("POST /uploads/remove", s.withWorkspace(s.handleRemoveFile))
	s.handle("POST /chat/subject", s.withWorkspace(s.handleSelectChatSubject))
	s.handle("POST /chat/ask", s.withWorkspace(s.handleAsk))
	s.handle("POST /study/subject", s.withWorkspace(s.handleSelectStudySubject))
	s.handle("POST /study/generate", s.withWorkspace(s.handleGenerate))
	s.handle("POST /study/check", s.withWorkspace(s.handleCheckAnswer))
}

// handle registers h and counts its responses under pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		h(sw, r)
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.IncHTTP(r.Method, pattern, status)
	}))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(util.ContextWithLogger(r.Context(), s.logger)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	s.renderInfo(w, r, view.InfoPage{
		Title:   "Forgot password",
		Message: "Password reset is handled by your account provider. Contact support to receive a reset link.",
	})
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	s.renderInfo(w, r, view.InfoPage{
		Title:   "Terms & Conditions",
		Message: "Your notes are sent to the AskMyNotes backend only to answer questions and generate study material.",
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(r *http.Request, limiter *ratelimit.FixedWindowLimiter) bool {
	return limiter.Allow(r.Context(), r.URL.Path+"|"+s.clientIP(r))
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trusted)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
