package app

import (
	"slices"
	"strings"

	"askmynotes/internal/metrics"
	"askmynotes/pkg/domain"
)

// SelectChatSubject picks which subject questions go to. Empty clears it.
func (w *Workspace) SelectChatSubject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectLocked(&w.chatSubject, name)
}

// SendQuestion appends the question and a pending placeholder to the selected
// subject's transcript and asks the backend in the background.
func (w *Workspace) SendQuestion(text string) error {
	text = strings.TrimSpace(text)
	w.mu.Lock()
	defer w.mu.Unlock()
	if text == "" {
		return domain.Invalid(MsgEnterQuestion)
	}
	subject := w.chatSubject
	if subject == "" {
		return domain.Invalid(MsgSelectSubjectFirst)
	}
	ctx, ok := w.scopeLocked(subject)
	if !ok {
		return domain.Invalid(MsgSelectSubjectFirst)
	}

	now := w.app.now()
	placeholderID := w.app.newID()
	w.transcripts[subject] = append(w.transcripts[subject],
		domain.ChatMessage{ID: w.app.newID(), Sender: domain.SenderUser, Text: text, CreatedAt: now},
		domain.ChatMessage{ID: placeholderID, Sender: domain.SenderBot, Text: MsgThinking, Pending: true, CreatedAt: now},
	)

	w.app.spawn(func() {
		answer, err := w.app.notes.Ask(ctx, subject, text)
		w.finishAnswer(subject, placeholderID, answer, err)
	})
	return nil
}

// finishAnswer replaces the placeholder with the reply. A missing placeholder
// means the transcript went away and the reply is dropped.
func (w *Workspace) finishAnswer(subject, placeholderID string, answer domain.Answer, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	transcript := w.transcripts[subject]
	i := slices.IndexFunc(transcript, func(m domain.ChatMessage) bool { return m.ID == placeholderID })
	if i < 0 {
		w.app.metrics.IncQuestion(metrics.OutcomeStale)
		return
	}
	w.app.metrics.IncQuestion(outcome(err))
	transcript = slices.Delete(transcript, i, i+1)

	reply := domain.ChatMessage{ID: w.app.newID(), Sender: domain.SenderBot, CreatedAt: w.app.now()}
	if err != nil {
		w.app.logger.Warn("ask failed", "subject", subject, "err", err)
		reply.Text = msgChatFailed(Reason(err))
	} else {
		reply.Answer = &answer
	}
	w.transcripts[subject] = append(transcript, reply)
}
