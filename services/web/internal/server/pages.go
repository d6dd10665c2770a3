package server

import (
	"bytes"
	"net/http"

	"askmynotes/internal/util"
	"askmynotes/services/web/internal/app"
	"askmynotes/services/web/internal/view"
)

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, page view.LoginPage) {
	page.AllowGuest = s.app.AllowGuest()
	s.writeHTML(w, r, status, func(buf *bytes.Buffer) error { return s.views.RenderLogin(buf, page) })
}

func (s *Server) renderApp(w http.ResponseWriter, r *http.Request, ws *app.Workspace) {
	page := view.BuildAppPage(ws.Snapshot(), s.now())
	page.Accept = s.accept
	s.writeHTML(w, r, http.StatusOK, func(buf *bytes.Buffer) error { return s.views.RenderApp(buf, page) })
}

func (s *Server) renderConfirm(w http.ResponseWriter, r *http.Request, page view.ConfirmPage) {
	s.writeHTML(w, r, http.StatusOK, func(buf *bytes.Buffer) error { return s.views.RenderConfirm(buf, page) })
}

func (s *Server) renderInfo(w http.ResponseWriter, r *http.Request, page view.InfoPage) {
	s.writeHTML(w, r, http.StatusOK, func(buf *bytes.Buffer) error { return s.views.RenderInfo(buf, page) })
}

// writeHTML renders fully before writing so a template failure becomes a clean 500.
func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, status int, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		util.LoggerFromContext(r.Context()).Error("render page failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
