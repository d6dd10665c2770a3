package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"askmynotes/internal/metrics"
	"askmynotes/pkg/domain"
)

const (
	errorNoticeTTL   = 5 * time.Second
	successNoticeTTL = 3 * time.Second
)

// Workspace is one signed-in user's application state: subjects, uploads,
// chat transcripts, study set, selections and notices. All access goes
// through its mutex.
type Workspace struct {
	app  *App
	user domain.User

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	subjects      []string
	scopes        map[string]subjectScope
	files         map[string][]domain.UploadedFile
	transcripts   map[string][]domain.ChatMessage
	uploadSubject string
	chatSubject   string
	studySubject  string
	study         studyState
	notices       []domain.Notice
	healthPending bool
}

// subjectScope carries the context every backend call for one subject runs under.
type subjectScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type studyState struct {
	subject string
	set     *domain.StudySet
	loading bool
	gen     uint64
	marks   map[int]int
}

func newWorkspace(a *App, user domain.User) *Workspace {
	ctx, cancel := context.WithCancel(context.Background())
	return &Workspace{
		app:         a,
		user:        user,
		ctx:         ctx,
		cancel:      cancel,
		scopes:      make(map[string]subjectScope),
		files:       make(map[string][]domain.UploadedFile),
		transcripts: make(map[string][]domain.ChatMessage),
	}
}

// User returns the workspace owner.
func (w *Workspace) User() domain.User {
	return w.user
}

func (w *Workspace) close() {
	w.cancel()
}

// checkBackend runs the one-off health probe for a fresh workspace.
func (w *Workspace) checkBackend() {
	w.mu.Lock()
	w.healthPending = true
	w.mu.Unlock()

	w.app.spawn(func() {
		err := w.app.notes.Health(w.ctx)
		w.mu.Lock()
		defer w.mu.Unlock()
		w.healthPending = false
		if err != nil && w.ctx.Err() == nil {
			w.app.logger.Warn("notes backend health check failed", "user_id", w.user.ID, "err", err)
			w.addNoticeLocked(domain.AreaApp, domain.NoticeWarning, MsgBackendDisconnected)
		}
	})
}

// Notify records a transient notice.
func (w *Workspace) Notify(area domain.NoticeArea, kind domain.NoticeKind, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addNoticeLocked(area, kind, msg)
}

func (w *Workspace) addNoticeLocked(area domain.NoticeArea, kind domain.NoticeKind, msg string) {
	now := w.app.now()
	ttl := errorNoticeTTL
	if kind == domain.NoticeSuccess {
		ttl = successNoticeTTL
	}
	w.pruneNoticesLocked(now)
	w.notices = append(w.notices, domain.Notice{
		ID:        w.app.newID(),
		Area:      area,
		Kind:      kind,
		Message:   msg,
		ExpiresAt: now.Add(ttl),
	})
}

func (w *Workspace) pruneNoticesLocked(now time.Time) {
	w.notices = slices.DeleteFunc(w.notices, func(n domain.Notice) bool {
		return !now.Before(n.ExpiresAt)
	})
}

func (w *Workspace) hasSubjectLocked(name string) bool {
	return slices.Contains(w.subjects, name)
}

// scopeLocked returns the context for calls about subject, or false if the
// subject no longer exists.
func (w *Workspace) scopeLocked(subject string) (context.Context, bool) {
	scope, ok := w.scopes[subject]
	if !ok {
		return nil, false
	}
	return scope.ctx, true
}

// StudySnapshot is the study panel's state at one instant.
type StudySnapshot struct {
	Subject string
	Set     *domain.StudySet
	Loading bool
	Marks   map[int]int
}

// Snapshot is an immutable copy of a workspace for rendering.
type Snapshot struct {
	User          domain.User
	Subjects      []string
	UploadSubject string
	ChatSubject   string
	StudySubject  string
	Files         []domain.UploadedFile
	Transcript    []domain.ChatMessage
	Study         StudySnapshot
	Notices       []domain.Notice
	Pending       bool
}

// Snapshot copies the current state. Expired notices are dropped.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.app.now()
	w.pruneNoticesLocked(now)

	snap := Snapshot{
		User:          w.user,
		Subjects:      slices.Clone(w.subjects),
		UploadSubject: w.uploadSubject,
		ChatSubject:   w.chatSubject,
		StudySubject:  w.studySubject,
		Files:         slices.Clone(w.files[w.uploadSubject]),
		Notices:       slices.Clone(w.notices),
		Pending:       w.pendingLocked(),
	}
	for _, msg := range w.transcripts[w.chatSubject] {
		if msg.Answer != nil {
			answer := *msg.Answer
			answer.Citations = slices.Clone(answer.Citations)
			answer.EvidenceSnippets = slices.Clone(answer.EvidenceSnippets)
			msg.Answer = &answer
		}
		snap.Transcript = append(snap.Transcript, msg)
	}
	snap.Study = StudySnapshot{
		Subject: w.study.subject,
		Loading: w.study.loading,
		Marks:   make(map[int]int, len(w.study.marks)),
	}
	for q, opt := range w.study.marks {
		snap.Study.Marks[q] = opt
	}
	if w.study.set != nil {
		set := domain.StudySet{
			MultipleChoice: make([]domain.StudyQuestion, 0, len(w.study.set.MultipleChoice)),
			ShortAnswer:    slices.Clone(w.study.set.ShortAnswer),
		}
		for _, q := range w.study.set.MultipleChoice {
			q.Options = slices.Clone(q.Options)
			set.MultipleChoice = append(set.MultipleChoice, q)
		}
		snap.Study.Set = &set
	}
	return snap
}

// pendingLocked reports whether any backend call is still outstanding.
func (w *Workspace) pendingLocked() bool {
	if w.study.loading || w.healthPending {
		return true
	}
	for _, files := range w.files {
		for _, f := range files {
			if f.Status == domain.FileUploading {
				return true
			}
		}
	}
	for _, transcript := range w.transcripts {
		for _, msg := range transcript {
			if msg.Pending {
				return true
			}
		}
	}
	return false
}

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeSuccess
}
