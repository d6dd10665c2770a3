package app

import (
	"askmynotes/internal/metrics"
	"askmynotes/pkg/domain"
)

// SelectStudySubject picks the subject questions are generated for. Empty clears it.
func (w *Workspace) SelectStudySubject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectLocked(&w.studySubject, name)
}

// GenerateQuestions clears the current set, enters loading and requests a new
// set. Only the latest request's result is kept.
func (w *Workspace) GenerateQuestions() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	subject := w.studySubject
	if subject == "" {
		return domain.Invalid(MsgSelectSubjectFirst)
	}
	ctx, ok := w.scopeLocked(subject)
	if !ok {
		return domain.Invalid(MsgSelectSubjectFirst)
	}
	gen := w.study.gen + 1
	w.study = studyState{subject: subject, loading: true, gen: gen}

	w.app.spawn(func() {
		set, err := w.app.notes.StudyMode(ctx, subject)
		w.finishStudy(gen, set, err)
	})
	return nil
}

func (w *Workspace) finishStudy(gen uint64, set domain.StudySet, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.study.gen || !w.study.loading {
		w.app.metrics.IncStudyGeneration(metrics.OutcomeStale)
		return
	}
	w.app.metrics.IncStudyGeneration(outcome(err))
	w.study.loading = false
	if err != nil {
		w.app.logger.Warn("study generation failed", "subject", w.study.subject, "err", err)
		w.addNoticeLocked(domain.AreaStudy, domain.NoticeError, msgStudyFailed(Reason(err)))
		return
	}
	w.study.set = &set
}

// CheckAnswer marks the chosen option of a multiple-choice question, replacing
// any earlier mark on that question. Nothing is scored.
func (w *Workspace) CheckAnswer(questionIndex, optionIndex int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.study.set == nil {
		return domain.Invalid(MsgNoQuestions)
	}
	mcqs := w.study.set.MultipleChoice
	if questionIndex < 0 || questionIndex >= len(mcqs) {
		return domain.Invalid(MsgInvalidOption)
	}
	if optionIndex < 0 || optionIndex >= len(mcqs[questionIndex].Options) {
		return domain.Invalid(MsgInvalidOption)
	}
	if w.study.marks == nil {
		w.study.marks = make(map[int]int)
	}
	w.study.marks[questionIndex] = optionIndex
	return nil
}
