package server

import (
	"errors"
	"net/http"
	"strings"

	"askmynotes/internal/util"
	"askmynotes/pkg/auth"
	"askmynotes/pkg/domain"
	"askmynotes/services/web/internal/app"
	"askmynotes/services/web/internal/view"
)

const (
	msgTooManyAttempts  = "Too many attempts. Please wait a minute and try again."
	msgAuthUnavailable  = "Authentication service unavailable"
	registeredQueryFlag = "registered"
)

// handleIndex shows the main app for a live session and the login screen otherwise.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionToken := cookieValue(r, sessionCookie)
	restored, err := s.app.RestoreSession(r.Context(), sessionToken, cookieValue(r, rememberCookie))
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("restore session failed", "err", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	if restored.Workspace != nil {
		s.renderApp(w, r, restored.Workspace)
		return
	}
	if sessionToken != "" {
		s.clearCookie(w, sessionCookie)
	}

	page := view.LoginPage{
		Register:   r.URL.Query().Get("view") == "register",
		Email:      restored.RememberedEmail,
		Name:       restored.RememberedName,
		RememberMe: restored.RememberedEmail != "",
	}
	if r.URL.Query().Get(registeredQueryFlag) != "" {
		page.Success = app.MsgAccountCreated
	}
	s.renderLogin(w, r, http.StatusOK, page)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(r, s.loginLimiter) {
		s.audit(r, "web.login", "rate_limited")
		w.Header().Set("Retry-After", "60")
		s.renderLogin(w, r, http.StatusTooManyRequests, view.LoginPage{Error: msgTooManyAttempts})
		return
	}
	email := r.PostFormValue("email")
	rememberMe := r.PostFormValue("remember_me") != ""
	res, err := s.app.Login(r.Context(), email, r.PostFormValue("password"), rememberMe)
	if err != nil {
		status, msg := authFailure(err)
		s.audit(r, "web.login", "fail", "reason", msg)
		if status >= http.StatusInternalServerError {
			util.LoggerFromContext(r.Context()).Error("login failed", "err", err)
		}
		s.renderLogin(w, r, status, view.LoginPage{Error: msg, Email: strings.TrimSpace(email), RememberMe: rememberMe})
		return
	}
	s.audit(r, "web.login", "success", "user_id", res.User.ID)
	s.startSession(w, r, res)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := auth.RegistrationForm{
		Name:            r.PostFormValue("name"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		AgreeToTerms:    r.PostFormValue("agree_terms") != "",
	}
	retry := view.LoginPage{Register: true, Name: strings.TrimSpace(form.Name), Email: strings.TrimSpace(form.Email)}
	if !s.allowRate(r, s.registerLimiter) {
		s.audit(r, "web.register", "rate_limited")
		w.Header().Set("Retry-After", "60")
		retry.Error = msgTooManyAttempts
		s.renderLogin(w, r, http.StatusTooManyRequests, retry)
		return
	}
	if err := s.app.Register(r.Context(), form); err != nil {
		status, msg := authFailure(err)
		s.audit(r, "web.register", "fail", "reason", msg)
		if status >= http.StatusInternalServerError {
			util.LoggerFromContext(r.Context()).Error("register failed", "err", err)
		}
		retry.Error = msg
		s.renderLogin(w, r, status, retry)
		return
	}
	s.audit(r, "web.register", "success")
	http.Redirect(w, r, "/?"+registeredQueryFlag+"=1", http.StatusSeeOther)
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(r, s.guestLimiter) {
		s.audit(r, "web.guest", "rate_limited")
		w.Header().Set("Retry-After", "60")
		s.renderLogin(w, r, http.StatusTooManyRequests, view.LoginPage{Error: msgTooManyAttempts})
		return
	}
	res, err := s.app.LoginAsGuest(r.Context())
	if err != nil {
		status, msg := authFailure(err)
		if _, ok := domain.IsValidation(err); ok {
			status = http.StatusForbidden
		}
		s.audit(r, "web.guest", "fail", "reason", msg)
		s.renderLogin(w, r, status, view.LoginPage{Error: msg})
		return
	}
	s.audit(r, "web.guest", "success")
	s.startSession(w, r, res)
}

// handleLogout asks for confirmation first; the confirmed post ends the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, sessionCookie)
	err := s.app.Logout(r.Context(), token, confirmed(r))
	if errors.Is(err, domain.ErrConfirmationRequired) {
		s.renderConfirm(w, r, view.ConfirmPage{
			Title:   "Logout",
			Message: app.MsgConfirmLogout,
			Action:  "/logout",
		})
		return
	}
	if err != nil {
		s.audit(r, "web.logout", "fail", "reason", err.Error())
		util.LoggerFromContext(r.Context()).Error("logout failed", "err", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	s.audit(r, "web.logout", "success")
	s.clearCookie(w, sessionCookie)
	s.clearCookie(w, rememberCookie)
	redirectHome(w, r)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, res app.LoginResult) {
	s.setSessionCookie(w, res.SessionToken)
	if res.RememberToken != "" {
		s.setRememberCookie(w, res.RememberToken)
	}
	if ws, err := s.app.Workspace(r.Context(), res.SessionToken); err == nil {
		ws.Notify(domain.AreaApp, domain.NoticeSuccess, app.MsgLoginSuccess)
	}
	redirectHome(w, r)
}

// authFailure maps a login or registration error to a status and inline message.
func authFailure(err error) (int, string) {
	if msg, ok := domain.IsValidation(err); ok {
		if msg == app.MsgInvalidCredentials {
			return http.StatusUnauthorized, msg
		}
		return http.StatusBadRequest, msg
	}
	var se *domain.ServerError
	if errors.As(err, &se) && se.Message != "" {
		return http.StatusBadGateway, se.Message
	}
	return http.StatusBadGateway, msgAuthUnavailable
}

func confirmed(r *http.Request) bool {
	return r.PostFormValue("confirm") == "yes"
}
