package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"askmynotes/pkg/domain"
)

// User-facing messages.
const (
	MsgInvalidCredentials  = "Invalid email or password"
	MsgLoginSuccess        = "Login successful! Redirecting..."
	MsgAccountCreated      = "Account created successfully! Redirecting to login..."
	MsgGuestDisabled       = "Guest access is disabled"
	MsgConfirmLogout       = "Are you sure you want to logout?"
	MsgEnterSubjectName    = "Please enter a subject name"
	MsgSubjectExists       = "Subject already exists"
	MsgSubjectNotFound     = "Subject not found"
	MsgSelectSubjectFirst  = "Please select a subject first"
	MsgOnlyFailedRemovable = "Only failed uploads can be removed"
	MsgEnterQuestion       = "Please enter a question"
	MsgThinking            = "Thinking..."
	MsgNoQuestions         = "Generate questions first"
	MsgInvalidOption       = "Invalid answer selection"
	MsgBackendDisconnected = "Warning: Backend API is not connected. Some features may not work."
)

// ErrClosed is returned once the application has begun shutting down.
var ErrClosed = errors.New("app closed")

var msgMaxSubjects = fmt.Sprintf("Maximum %d subjects allowed", domain.MaxSubjects)

func msgSubjectCreated(name string) string {
	return fmt.Sprintf("Subject \"%s\" created successfully!", name)
}

// ConfirmDeleteMessage is the prompt shown before a subject is deleted.
func ConfirmDeleteMessage(name string) string {
	return fmt.Sprintf("Are you sure you want to delete \"%s\" and all its files?", name)
}

func msgInvalidFileType(name string, exts []string) string {
	return fmt.Sprintf("Invalid file type: %s. Only %s files allowed.", name, joinExtensions(exts))
}

func msgFileTooLarge(name string) string {
	return fmt.Sprintf("File too large: %s.", name)
}

func msgUploaded(name string) string {
	return fmt.Sprintf("File \"%s\" uploaded successfully!", name)
}

func msgUploadFailed(name, reason string) string {
	return fmt.Sprintf("Failed to upload \"%s\": %s", name, reason)
}

func msgChatFailed(reason string) string {
	return "Sorry, I encountered an error: " + reason
}

func msgStudyFailed(reason string) string {
	return "Failed to generate questions: " + reason
}

// joinExtensions renders ["pdf","txt","md"] as "PDF, TXT and MD".
func joinExtensions(exts []string) string {
	upper := make([]string, 0, len(exts))
	for _, ext := range exts {
		upper = append(upper, strings.ToUpper(ext))
	}
	switch len(upper) {
	case 0:
		return "supported"
	case 1:
		return upper[0]
	default:
		return strings.Join(upper[:len(upper)-1], ", ") + " and " + upper[len(upper)-1]
	}
}

// Reason turns a backend failure into the short text shown after a colon.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := domain.IsValidation(err); ok {
		return msg
	}
	var se *domain.ServerError
	if errors.As(err, &se) {
		return se.Message
	}
	var te *domain.TransportError
	if errors.As(err, &te) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "Request timed out"
		case errors.Is(err, domain.ErrBackendUnavailable):
			return "Backend temporarily unavailable"
		default:
			return "Failed to fetch"
		}
	}
	return err.Error()
}
