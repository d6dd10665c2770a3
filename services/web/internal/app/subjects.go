package app

import (
	"context"
	"slices"
	"strings"

	"askmynotes/pkg/domain"
)

// CreateSubject adds a subject and tells the backend about it in the background.
func (w *Workspace) CreateSubject(name string) error {
	name = strings.TrimSpace(name)
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case name == "":
		return domain.Invalid(MsgEnterSubjectName)
	case len(w.subjects) >= domain.MaxSubjects:
		return domain.Invalid(msgMaxSubjects)
	case w.hasSubjectLocked(name):
		return domain.Invalid(MsgSubjectExists)
	}

	ctx, cancel := context.WithCancel(w.ctx)
	w.scopes[name] = subjectScope{ctx: ctx, cancel: cancel}
	w.subjects = append(w.subjects, name)
	w.files[name] = []domain.UploadedFile{}
	w.addNoticeLocked(domain.AreaSubject, domain.NoticeSuccess, msgSubjectCreated(name))

	w.app.spawn(func() {
		if err := w.app.notes.CreateSubject(ctx, name); err != nil && ctx.Err() == nil {
			w.app.logger.Warn("notify backend of new subject failed", "subject", name, "err", err)
		}
	})
	return nil
}

// DeleteSubject removes a subject with everything hanging off it. In-flight
// calls for the subject are cancelled and any selection naming it is cleared.
// Unknown names are ignored.
func (w *Workspace) DeleteSubject(name string, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasSubjectLocked(name) {
		return nil
	}
	if scope, ok := w.scopes[name]; ok {
		scope.cancel()
		delete(w.scopes, name)
	}
	w.subjects = slices.DeleteFunc(w.subjects, func(s string) bool { return s == name })
	delete(w.files, name)
	delete(w.transcripts, name)

	if w.uploadSubject == name {
		w.uploadSubject = ""
	}
	if w.chatSubject == name {
		w.chatSubject = ""
	}
	if w.studySubject == name {
		w.studySubject = ""
	}
	if w.study.subject == name {
		w.study = studyState{gen: w.study.gen + 1}
	}
	return nil
}

// Subjects returns the subject names in creation order.
func (w *Workspace) Subjects() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.subjects)
}

// selectLocked validates a selection target. Empty clears.
func (w *Workspace) selectLocked(dst *string, name string) error {
	if name != "" && !w.hasSubjectLocked(name) {
		return domain.Invalid(MsgSubjectNotFound)
	}
	*dst = name
	return nil
}
