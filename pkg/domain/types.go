package domain

import "time"

// MaxSubjects caps the number of subjects a workspace may hold.
const MaxSubjects = 3

type FileStatus string

const (
	FileUploading FileStatus = "uploading"
	FileSuccess   FileStatus = "success"
	FileError     FileStatus = "error"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple-choice"
	KindShortAnswer    QuestionKind = "short-answer"
)

type NoticeKind string

const (
	NoticeError   NoticeKind = "error"
	NoticeSuccess NoticeKind = "success"
	NoticeWarning NoticeKind = "warning"
)

// NoticeArea names the inline message slot a notice is rendered into.
type NoticeArea string

const (
	AreaApp     NoticeArea = "app"
	AreaSubject NoticeArea = "subject"
	AreaUpload  NoticeArea = "upload"
	AreaChat    NoticeArea = "chat"
	AreaStudy   NoticeArea = "study"
)

// GuestUser is the fixed identity used for guest entry.
var GuestUser = User{
	ID:    "guest",
	Email: "guest@example.com",
	Name:  "Guest User",
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RememberedUser is what the long-lived remember-me cookie carries.
type RememberedUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type UploadedFile struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Size   int64      `json:"size"`
	Status FileStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// CanTransition reports whether an upload may move from its current status to next.
// Only uploading -> success and uploading -> error are legal.
func (f UploadedFile) CanTransition(next FileStatus) bool {
	return f.Status == FileUploading && (next == FileSuccess || next == FileError)
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text,omitempty"`
	Answer    *Answer   `json:"answer,omitempty"`
	Pending   bool      `json:"pending,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Answer is the structured reply from the question-answering backend.
type Answer struct {
	Text             string   `json:"answer"`
	Citations        []string `json:"citations,omitempty"`
	EvidenceSnippets []string `json:"evidenceSnippets,omitempty"`
	ConfidenceLevel  string   `json:"confidenceLevel,omitempty"`
}

// NotFoundSentinel marks answers the backend could not ground in the notes.
const NotFoundSentinel = "Not found in your notes for"

type StudyQuestion struct {
	Kind         QuestionKind `json:"kind"`
	Prompt       string       `json:"prompt"`
	Options      []string     `json:"options,omitempty"`
	CorrectIndex int          `json:"correctIndex,omitempty"`
	Explanation  string       `json:"explanation,omitempty"`
	SampleAnswer string       `json:"sampleAnswer,omitempty"`
}

// StudySet is one generated batch of questions for a subject.
type StudySet struct {
	MultipleChoice []StudyQuestion `json:"multipleChoice"`
	ShortAnswer    []StudyQuestion `json:"shortAnswer"`
}

type Notice struct {
	ID        string     `json:"id"`
	Area      NoticeArea `json:"area"`
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	ExpiresAt time.Time  `json:"expiresAt"`
}
