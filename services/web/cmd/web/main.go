package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"askmynotes/internal/metrics"
	"askmynotes/internal/servicetoken"
	"askmynotes/internal/usertoken"
	"askmynotes/internal/util"
	"askmynotes/pkg/store"
	"askmynotes/services/web/internal/app"
	"askmynotes/services/web/internal/authclient"
	"askmynotes/services/web/internal/config"
	"askmynotes/services/web/internal/notesclient"
	"askmynotes/services/web/internal/server"
	"askmynotes/services/web/internal/view"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	collector := metrics.NewCollector("askmynotes_web")

	var signer notesclient.TokenSigner
	if cfg.NotesServiceKeyPath != "" {
		s, err := servicetoken.NewSigner(servicetoken.SignerOptions{
			PrivateKeyPath: cfg.NotesServiceKeyPath,
			Issuer:         "askmynotes-web",
		})
		if err != nil {
			log.Fatalf("failed to init service token signer: %v", err)
		}
		signer = s
	}
	notes := notesclient.New(notesclient.Options{
		BaseURL:  cfg.NotesServiceURL,
		Timeout:  cfg.BackendTimeout,
		Signer:   signer,
		Audience: cfg.NotesServiceAudience,
		Metrics:  collector,
		Logger:   logger,
	})
	authClient := authclient.NewClient(cfg.AuthServiceURL, cfg.BackendTimeout, collector)

	var verifier app.TokenVerifier
	if cfg.AuthJWKSURL != "" {
		v, err := usertoken.NewVerifier(usertoken.Config{
			JWKSURL:    cfg.AuthJWKSURL,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			Leeway:     cfg.JWTLeeway,
			HTTPClient: &http.Client{Timeout: 5 * time.Second},
		})
		if err != nil {
			log.Fatalf("failed to init jwks verifier: %v", err)
		}
		verifier = v
	}

	sessions, closeSessions, err := openSessionStore(cfg)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}
	defer closeSessions()
	remember, err := store.NewRememberCodec(cfg.RememberSecret, cfg.RememberTTL)
	if err != nil {
		log.Fatalf("failed to init remember codec: %v", err)
	}

	appCore, err := app.New(app.Config{
		AllowGuest:        cfg.GuestAllowed(),
		AllowedExtensions: cfg.AllowedExtensions,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		UploadConcurrency: cfg.UploadConcurrency,
		IdleTimeout:       cfg.WorkspaceIdleTimeout,
		SweepInterval:     cfg.WorkspaceSweepInterval,
		Notes:             notes,
		Auth:              authClient,
		Verifier:          verifier,
		Sessions:          sessions,
		Remember:          remember,
		Metrics:           collector,
		Logger:            logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), 5*time.Second)
	if err := appCore.CheckBackend(healthCtx); err != nil {
		logger.Warn("notes backend is not reachable at startup", "url", cfg.NotesServiceURL, "err", err)
	}
	cancelHealth()

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	renderer, err := view.NewRenderer()
	if err != nil {
		log.Fatalf("failed to load templates: %v", err)
	}
	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Renderer:                   renderer,
		Metrics:                    collector,
		Logger:                     logger,
		TrustedProxies:             trusted,
		CookieSecure:               cfg.CookieSecure,
		RememberTTL:                remember.TTL(),
		MaxUploadBytes:             cfg.MaxUploadBytes,
		AllowedExtensions:          cfg.AllowedExtensions,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		GuestRateLimitPerMinute:    cfg.GuestRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer httpServer.Close()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("web server listening", "addr", addr, "session_store", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down web server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
	appCore.Close()
}

// openSessionStore picks the configured session backend.
func openSessionStore(cfg config.FileConfig) (store.SessionStore, func(), error) {
	if cfg.SessionStore == config.SessionStoreMemory {
		return store.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}
	rs, err := store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}
