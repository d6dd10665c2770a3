package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"askmynotes/internal/metrics"
	"askmynotes/pkg/domain"
	"askmynotes/pkg/store"
	"askmynotes/services/web/internal/authclient"
	"askmynotes/services/web/internal/config"
)

// NotesBackend is the question-answering backend.
type NotesBackend interface {
	Upload(ctx context.Context, subject, filename string, data []byte) error
	Ask(ctx context.Context, subject, question string) (domain.Answer, error)
	StudyMode(ctx context.Context, subject string) (domain.StudySet, error)
	Health(ctx context.Context) error
	CreateSubject(ctx context.Context, name string) error
}

// AuthBackend owns accounts and credentials.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (authclient.Session, error)
	SignUp(ctx context.Context, name, email, password string) (domain.User, error)
	Logout(ctx context.Context, token string) error
}

// TokenVerifier checks that an access token was issued to a given user.
type TokenVerifier interface {
	VerifySubject(ctx context.Context, token, subject string) error
}

// Config holds runtime configuration and collaborators for the core application.
type Config struct {
	AllowGuest        bool
	AllowedExtensions []string
	MaxUploadBytes    int64
	UploadConcurrency int
	// IdleTimeout evicts workspaces not touched for this long. Zero keeps
	// them for as long as their session record lives.
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	Notes    NotesBackend
	Auth     AuthBackend
	Verifier TokenVerifier
	Sessions store.SessionStore
	Remember *store.RememberCodec
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// App owns every live workspace and the background calls they start.
type App struct {
	cfg      Config
	notes    NotesBackend
	auth     AuthBackend
	verifier TokenVerifier
	sessions store.SessionStore
	remember *store.RememberCodec
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu         sync.Mutex
	workspaces map[string]*workspaceEntry
	closed     bool
	bg         sync.WaitGroup

	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

type workspaceEntry struct {
	ws       *Workspace
	lastSeen time.Time
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Notes == nil {
		return nil, errors.New("notes backend required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("auth backend required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if cfg.Remember == nil {
		return nil, errors.New("remember codec required")
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{"pdf", "txt"}
	}
	cfg.AllowedExtensions = config.NormalizeExtensions(cfg.AllowedExtensions)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	a := &App{
		cfg:        cfg,
		notes:      cfg.Notes,
		auth:       cfg.Auth,
		verifier:   cfg.Verifier,
		sessions:   cfg.Sessions,
		remember:   cfg.Remember,
		metrics:    cfg.Metrics,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		workspaces: make(map[string]*workspaceEntry),
		stopSweep:  stopSweep,
		sweepDone:  make(chan struct{}),
	}
	go a.sweepLoop(sweepCtx, cfg.SweepInterval)
	return a, nil
}

// AllowGuest reports whether guest entry is offered.
func (a *App) AllowGuest() bool {
	return a.cfg.AllowGuest
}

// Workspace resolves a session token to its workspace, recreating an empty
// one when the session is live but this process has not seen it.
func (a *App) Workspace(ctx context.Context, token string) (*Workspace, error) {
	if token == "" {
		return nil, domain.ErrNoSession
	}
	rec, err := a.sessions.Get(ctx, token)
	if errors.Is(err, store.ErrSessionNotFound) {
		a.dropWorkspace(token)
		return nil, domain.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return a.openWorkspace(token, rec.User)
}

// openWorkspace returns the workspace for token, creating it if needed.
func (a *App) openWorkspace(token string, user domain.User) (*Workspace, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	now := a.now()
	if entry, ok := a.workspaces[token]; ok {
		entry.lastSeen = now
		a.mu.Unlock()
		return entry.ws, nil
	}
	ws := newWorkspace(a, user)
	a.workspaces[token] = &workspaceEntry{ws: ws, lastSeen: now}
	count := len(a.workspaces)
	a.mu.Unlock()

	a.metrics.SetWorkspaces(count)
	ws.checkBackend()
	return ws, nil
}

func (a *App) dropWorkspace(token string) {
	a.mu.Lock()
	entry, ok := a.workspaces[token]
	delete(a.workspaces, token)
	count := len(a.workspaces)
	a.mu.Unlock()
	if ok {
		entry.ws.close()
		a.metrics.SetWorkspaces(count)
	}
}

// WorkspaceCount returns the number of workspaces held in memory.
func (a *App) WorkspaceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.workspaces)
}

func (a *App) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(a.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.sweep(ctx); n > 0 {
				a.logger.Info("evicted workspaces", "count", n)
			}
		}
	}
}

// sweep drops workspaces whose session record is gone or that have been
// idle past IdleTimeout. It returns how many were dropped.
func (a *App) sweep(ctx context.Context) int {
	now := a.now()
	a.mu.Lock()
	seen := make(map[string]time.Time, len(a.workspaces))
	for token, entry := range a.workspaces {
		seen[token] = entry.lastSeen
	}
	a.mu.Unlock()

	dropped := 0
	for token, last := range seen {
		if ctx.Err() != nil {
			break
		}
		if a.cfg.IdleTimeout > 0 && now.Sub(last) > a.cfg.IdleTimeout {
			a.dropWorkspace(token)
			dropped++
			continue
		}
		_, err := a.sessions.Get(ctx, token)
		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			a.dropWorkspace(token)
			dropped++
		case err != nil && ctx.Err() == nil:
			a.logger.Warn("sweep: load session failed", "err", err)
		}
	}
	return dropped
}

// spawn runs fn on a tracked background goroutine. Nothing starts once
// Close has begun.
func (a *App) spawn(fn func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.bg.Add(1)
	a.mu.Unlock()
	go func() {
		defer a.bg.Done()
		fn()
	}()
}

// Wait blocks until every background backend call has finished.
func (a *App) Wait() {
	a.bg.Wait()
}

// Close stops the sweeper, cancels every workspace and waits for in-flight
// calls to unwind. Calls after the first are no-ops.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	all := a.workspaces
	a.workspaces = make(map[string]*workspaceEntry)
	a.mu.Unlock()

	a.stopSweep()
	<-a.sweepDone
	for _, entry := range all {
		entry.ws.close()
	}
	a.metrics.SetWorkspaces(0)
	a.bg.Wait()
}

// CheckBackend probes the notes backend once.
func (a *App) CheckBackend(ctx context.Context) error {
	return a.notes.Health(ctx)
}
