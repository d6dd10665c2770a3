package notesclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"askmynotes/pkg/domain"
)

// textList accepts a JSON string, an array of scalars, or null.
type textList []string

func (l *textList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = nil
			return nil
		}
		*l = textList{s}
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected string or list: %w", err)
	}
	out := make(textList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				out = append(out, v)
			}
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	*l = out
	return nil
}

type answerResponse struct {
	Answer           string   `json:"answer"`
	Citations        textList `json:"citations"`
	EvidenceSnippets textList `json:"evidence_snippets"`
	ConfidenceLevel  string   `json:"confidence_level"`
	Confidence       string   `json:"confidence"`
	Error            string   `json:"error"`
}

func (r answerResponse) toAnswer() domain.Answer {
	confidence := strings.TrimSpace(r.ConfidenceLevel)
	if confidence == "" {
		confidence = strings.TrimSpace(r.Confidence)
	}
	return domain.Answer{
		Text:             r.Answer,
		Citations:        []string(r.Citations),
		EvidenceSnippets: []string(r.EvidenceSnippets),
		ConfidenceLevel:  confidence,
	}
}

type studyResponse struct {
	MCQs []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer *int     `json:"correct_answer"`
		Explanation   string   `json:"explanation"`
	} `json:"mcqs"`
	ShortAnswers []struct {
		Question     string `json:"question"`
		SampleAnswer string `json:"sample_answer"`
	} `json:"short_answers"`
	Error string `json:"error"`
}

// toStudySet converts the wire shape and reports how many MC items were
// dropped for lacking a usable correct index.
func (r studyResponse) toStudySet() (domain.StudySet, int) {
	set := domain.StudySet{
		MultipleChoice: make([]domain.StudyQuestion, 0, len(r.MCQs)),
		ShortAnswer:    make([]domain.StudyQuestion, 0, len(r.ShortAnswers)),
	}
	dropped := 0
	for _, q := range r.MCQs {
		if q.CorrectAnswer == nil || *q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Options) {
			dropped++
			continue
		}
		set.MultipleChoice = append(set.MultipleChoice, domain.StudyQuestion{
			Kind:         domain.KindMultipleChoice,
			Prompt:       q.Question,
			Options:      append([]string(nil), q.Options...),
			CorrectIndex: *q.CorrectAnswer,
			Explanation:  q.Explanation,
		})
	}
	for _, q := range r.ShortAnswers {
		set.ShortAnswer = append(set.ShortAnswer, domain.StudyQuestion{
			Kind:         domain.KindShortAnswer,
			Prompt:       q.Question,
			SampleAnswer: q.SampleAnswer,
		})
	}
	return set, dropped
}
