package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"askmynotes/internal/util"
	"askmynotes/pkg/domain"
	"askmynotes/services/web/internal/app"
	"askmynotes/services/web/internal/view"
)

const (
	maxFilesPerUpload  = 10
	multipartMemory    = 32 << 20
	msgSelectFiles     = "Please select at least one file"
	msgUploadTooLarge  = "Upload too large"
	msgInvalidFormData = "Invalid form data"
)

func msgTooManyFiles(name string) string {
	return fmt.Sprintf("Too many files: %s was not uploaded", name)
}

type workspaceHandler func(http.ResponseWriter, *http.Request, *app.Workspace)

// withWorkspace resolves the session cookie. Requests without a live session
// are sent back to the login screen.
func (s *Server) withWorkspace(next workspaceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.app.Workspace(r.Context(), cookieValue(r, sessionCookie))
		if errors.Is(err, domain.ErrNoSession) {
			s.clearCookie(w, sessionCookie)
			redirectHome(w, r)
			return
		}
		if err != nil {
			util.LoggerFromContext(r.Context()).Error("load workspace failed", "err", err)
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}
		next(w, r, ws)
	}
}

// report turns an operation error into a notice in area.
func report(r *http.Request, ws *app.Workspace, area domain.NoticeArea, err error) {
	if err == nil {
		return
	}
	if _, ok := domain.IsValidation(err); !ok {
		util.LoggerFromContext(r.Context()).Warn("workspace operation failed", "area", area, "err", err)
	}
	ws.Notify(area, domain.NoticeError, app.Reason(err))
}

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	report(r, ws, domain.AreaSubject, ws.CreateSubject(r.PostFormValue("name")))
	redirectHome(w, r)
}

func (s *Server) handleDeleteSubject(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	name := r.PostFormValue("name")
	err := ws.DeleteSubject(name, confirmed(r))
	if errors.Is(err, domain.ErrConfirmationRequired) {
		s.renderConfirm(w, r, view.ConfirmPage{
			Title:   "Delete subject",
			Message: app.ConfirmDeleteMessage(name),
			Action:  "/subjects/delete",
			Fields:  map[string]string{"name": name},
		})
		return
	}
	report(r, ws, domain.AreaSubject, err)
	redirectHome(w, r)
}

func (s *Server) handleSelectUploadSubject(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	report(r, ws, domain.AreaUpload, ws.SelectUploadSubject(r.PostFormValue("subject")))
	redirectHome(w, r)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes*maxFilesPerUpload+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ws.Notify(domain.AreaUpload, domain.NoticeError, msgUploadTooLarge)
		} else {
			ws.Notify(domain.AreaUpload, domain.NoticeError, msgInvalidFormData)
		}
		redirectHome(w, r)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		ws.Notify(domain.AreaUpload, domain.NoticeError, msgSelectFiles)
		redirectHome(w, r)
		return
	}
	if len(headers) > maxFilesPerUpload {
		for _, fh := range headers[maxFilesPerUpload:] {
			ws.Notify(domain.AreaUpload, domain.NoticeError, msgTooManyFiles(fh.Filename))
		}
		headers = headers[:maxFilesPerUpload]
	}
	files := make([]app.FileUpload, 0, len(headers))
	for _, fh := range headers {
		data, err := s.readUpload(fh)
		if err != nil {
			util.LoggerFromContext(r.Context()).Warn("read uploaded file failed", "file", fh.Filename, "err", err)
			ws.Notify(domain.AreaUpload, domain.NoticeError, msgInvalidFormData)
			continue
		}
		files = append(files, app.FileUpload{Name: fh.Filename, Data: data})
	}
	report(r, ws, domain.AreaUpload, ws.UploadFiles(r.PostFormValue("subject"), files))
	redirectHome(w, r)
}

// readUpload reads at most one byte past the limit so oversized files are
// still recognisable as such.
func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, s.maxUploadBytes+1))
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	report(r, ws, domain.AreaUpload, ws.RemoveFile(r.PostFormValue("subject"), r.PostFormValue("id")))
	redirectHome(w, r)
}

func (s *Server) handleSelectChatSubject(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	report(r, ws, domain.AreaChat, ws.SelectChatSubject(r.PostFormValue("subject")))
	redirectHome(w, r)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	report(r, ws, domain.AreaChat, ws.SendQuestion(r.PostFormValue("question")))
	redirectHome(w, r)
}

func (s *Server) handleSelectStudySubject(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	report(r, ws, domain.AreaStudy, ws.SelectStudySubject(r.PostFormValue("subject")))
	redirectHome(w, r)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	report(r, ws, domain.AreaStudy, ws.GenerateQuestions())
	redirectHome(w, r)
}

func (s *Server) handleCheckAnswer(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	q, qErr := strconv.Atoi(r.PostFormValue("question"))
	opt, optErr := strconv.Atoi(r.PostFormValue("option"))
	if qErr != nil || optErr != nil {
		ws.Notify(domain.AreaStudy, domain.NoticeError, app.MsgInvalidOption)
		redirectHome(w, r)
		return
	}
	report(r, ws, domain.AreaStudy, ws.CheckAnswer(q, opt))
	redirectHome(w, r)
}
