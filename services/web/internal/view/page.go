package view

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"askmynotes/pkg/domain"
	"askmynotes/services/web/internal/app"
)

// RefreshInterval is how often a page with outstanding backend calls reloads itself.
const RefreshInterval = 2 * time.Second

const (
	selectSubjectLabel     = "-- Select a subject --"
	noSubjectsText         = "No subjects created yet. Create up to 3 subjects."
	defaultQuestionHint    = "Ask a question about your notes..."
	noAnswerText           = "No answer provided"
	statusUploadingLabel   = "Uploading..."
	statusUploadedLabel    = "Uploaded"
	statusFailedLabel      = "Failed"
	markCorrect            = "correct"
	markIncorrect          = "incorrect"
	shortAnswerPlaceholder = "Type your answer here..."
)

// Option is one entry of a subject dropdown.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

type FileRow struct {
	Subject     string
	ID          string
	Name        string
	Size        string
	Status      string
	StatusLabel string
	Error       string
	Removable   bool
}

type AnswerView struct {
	Text            string
	Citations       string
	Evidence        []string
	Confidence      string
	ConfidenceClass string
}

type MessageView struct {
	Sender   string
	Text     string
	Pending  bool
	NotFound bool
	Answer   *AnswerView
}

type ChoiceView struct {
	Index     int
	Letter    string
	Text      string
	MarkClass string
}

type MultipleChoiceView struct {
	Index       int
	Number      int
	Prompt      string
	Choices     []ChoiceView
	Explanation string
}

type ShortAnswerView struct {
	Number       int
	Prompt       string
	SampleAnswer string
	Placeholder  string
}

type NoticeView struct {
	Kind    string
	Message string
}

// Notices groups live notices by the panel that shows them.
type Notices struct {
	App     []NoticeView
	Subject []NoticeView
	Upload  []NoticeView
	Chat    []NoticeView
	Study   []NoticeView
}

// AppPage is the view-model of the main application screen.
type AppPage struct {
	User domain.User

	Subjects          []string
	SubjectsEmptyText string
	CanCreateSubject  bool

	UploadOptions  []Option
	UploadSubject  string
	UploadDisabled bool
	Accept         string
	Files          []FileRow

	ChatOptions         []Option
	ChatSubject         string
	ChatDisabled        bool
	QuestionPlaceholder string
	Messages            []MessageView

	StudyOptions     []Option
	StudySubject     string
	GenerateDisabled bool
	StudyLoading     bool
	MultipleChoice   []MultipleChoiceView
	ShortAnswers     []ShortAnswerView

	Notices        Notices
	Refresh        bool
	RefreshSeconds int
}

// BuildAppPage projects a workspace snapshot onto the main screen.
func BuildAppPage(snap app.Snapshot, now time.Time) AppPage {
	page := AppPage{
		User:             snap.User,
		Subjects:         snap.Subjects,
		CanCreateSubject: len(snap.Subjects) < domain.MaxSubjects,
		UploadOptions:    subjectOptions(snap.Subjects, snap.UploadSubject),
		UploadSubject:    snap.UploadSubject,
		UploadDisabled:   snap.UploadSubject == "",
		ChatOptions:      subjectOptions(snap.Subjects, snap.ChatSubject),
		ChatSubject:      snap.ChatSubject,
		ChatDisabled:     snap.ChatSubject == "",
		StudyOptions:     subjectOptions(snap.Subjects, snap.StudySubject),
		StudySubject:     snap.StudySubject,
		StudyLoading:     snap.Study.Loading,
		GenerateDisabled: snap.StudySubject == "" || snap.Study.Loading,
		Refresh:          snap.Pending,
		RefreshSeconds:   int(RefreshInterval / time.Second),
	}
	if len(snap.Subjects) == 0 {
		page.SubjectsEmptyText = noSubjectsText
	}

	page.QuestionPlaceholder = defaultQuestionHint
	if snap.ChatSubject != "" {
		page.QuestionPlaceholder = fmt.Sprintf("Ask about %s...", snap.ChatSubject)
	}

	for _, f := range snap.Files {
		page.Files = append(page.Files, fileRow(snap.UploadSubject, f))
	}
	for _, msg := range snap.Transcript {
		page.Messages = append(page.Messages, messageView(msg))
	}
	if set := snap.Study.Set; set != nil {
		for i, q := range set.MultipleChoice {
			page.MultipleChoice = append(page.MultipleChoice, multipleChoiceView(i, q, snap.Study.Marks))
		}
		for i, q := range set.ShortAnswer {
			page.ShortAnswers = append(page.ShortAnswers, ShortAnswerView{
				Number:       i + 1,
				Prompt:       q.Prompt,
				SampleAnswer: q.SampleAnswer,
				Placeholder:  shortAnswerPlaceholder,
			})
		}
	}

	for _, n := range snap.Notices {
		if !now.Before(n.ExpiresAt) {
			continue
		}
		nv := NoticeView{Kind: string(n.Kind), Message: n.Message}
		switch n.Area {
		case domain.AreaSubject:
			page.Notices.Subject = append(page.Notices.Subject, nv)
		case domain.AreaUpload:
			page.Notices.Upload = append(page.Notices.Upload, nv)
		case domain.AreaChat:
			page.Notices.Chat = append(page.Notices.Chat, nv)
		case domain.AreaStudy:
			page.Notices.Study = append(page.Notices.Study, nv)
		default:
			page.Notices.App = append(page.Notices.App, nv)
		}
	}
	return page
}

func subjectOptions(subjects []string, selected string) []Option {
	opts := make([]Option, 0, len(subjects)+1)
	opts = append(opts, Option{Value: "", Label: selectSubjectLabel, Selected: selected == ""})
	for _, s := range subjects {
		opts = append(opts, Option{Value: s, Label: s, Selected: s == selected})
	}
	return opts
}

func fileRow(subject string, f domain.UploadedFile) FileRow {
	row := FileRow{
		Subject:   subject,
		ID:        f.ID,
		Name:      f.Name,
		Size:      FormatFileSize(f.Size),
		Status:    string(f.Status),
		Error:     f.Error,
		Removable: f.Status == domain.FileError,
	}
	switch f.Status {
	case domain.FileUploading:
		row.StatusLabel = statusUploadingLabel
	case domain.FileError:
		row.StatusLabel = statusFailedLabel
	default:
		row.StatusLabel = statusUploadedLabel
	}
	return row
}

func messageView(msg domain.ChatMessage) MessageView {
	mv := MessageView{Sender: string(msg.Sender), Text: msg.Text, Pending: msg.Pending}
	if msg.Answer == nil {
		return mv
	}
	a := msg.Answer
	if strings.Contains(a.Text, domain.NotFoundSentinel) {
		mv.NotFound = true
		mv.Text = a.Text
		return mv
	}
	av := &AnswerView{
		Text:            a.Text,
		Citations:       strings.Join(a.Citations, ", "),
		Evidence:        a.EvidenceSnippets,
		Confidence:      a.ConfidenceLevel,
		ConfidenceClass: strings.ToLower(strings.TrimSpace(a.ConfidenceLevel)),
	}
	if av.Text == "" {
		av.Text = noAnswerText
	}
	mv.Answer = av
	return mv
}

func multipleChoiceView(index int, q domain.StudyQuestion, marks map[int]int) MultipleChoiceView {
	mc := MultipleChoiceView{
		Index:       index,
		Number:      index + 1,
		Prompt:      q.Prompt,
		Explanation: q.Explanation,
	}
	chosen, marked := marks[index]
	for i, opt := range q.Options {
		cv := ChoiceView{Index: i, Letter: OptionLetter(i), Text: opt}
		if marked && chosen == i {
			cv.MarkClass = markIncorrect
			if i == q.CorrectIndex {
				cv.MarkClass = markCorrect
			}
		}
		mc.Choices = append(mc.Choices, cv)
	}
	return mc
}

// OptionLetter returns A for 0, B for 1 and so on, continuing past Z as AA, AB.
func OptionLetter(i int) string {
	if i < 0 {
		return ""
	}
	letters := ""
	for {
		letters = string(rune('A'+i%26)) + letters
		i = i/26 - 1
		if i < 0 {
			return letters
		}
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count in 1024 steps with at most two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// AcceptList renders extensions for a file input's accept attribute.
func AcceptList(exts []string) string {
	parts := make([]string, 0, len(exts))
	for _, ext := range exts {
		parts = append(parts, "."+ext)
	}
	return strings.Join(parts, ",")
}
