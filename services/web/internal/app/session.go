package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"askmynotes/internal/metrics"
	"askmynotes/internal/util"
	"askmynotes/pkg/auth"
	"askmynotes/pkg/domain"
	"askmynotes/pkg/store"
	"askmynotes/services/web/internal/authclient"
)

// LoginResult carries what the HTTP layer turns into cookies.
type LoginResult struct {
	SessionToken  string
	RememberToken string
	User          domain.User
}

// Restored is the outcome of RestoreSession. Workspace is nil when no session resumed.
type Restored struct {
	Workspace       *Workspace
	RememberedEmail string
	RememberedName  string
}

// Login validates the form, delegates the credential check to the auth
// backend, and opens a session. Nothing is persisted on failure.
func (a *App) Login(ctx context.Context, email, password string, rememberMe bool) (LoginResult, error) {
	form := auth.LoginForm{Email: email, Password: password}
	if err := auth.ValidateLogin(&form); err != nil {
		a.metrics.IncAuth("login", "invalid")
		return LoginResult{}, err
	}
	sess, err := a.auth.Login(ctx, form.Email, form.Password)
	if err != nil {
		a.metrics.IncAuth("login", metrics.OutcomeError)
		if authclient.IsCredentialError(err) {
			return LoginResult{}, domain.Invalid(MsgInvalidCredentials)
		}
		return LoginResult{}, backendError(err)
	}

	user := sess.User
	if a.verifier != nil {
		if err := a.verifier.VerifySubject(ctx, sess.AccessToken, user.ID); err != nil {
			a.metrics.IncAuth("login", metrics.OutcomeError)
			return LoginResult{}, fmt.Errorf("verify access token: %w", err)
		}
	}
	user = a.completeUser(user, form.Email)

	res, err := a.startSession(ctx, store.SessionRecord{User: user, AccessToken: sess.AccessToken})
	if err != nil {
		return LoginResult{}, err
	}
	if rememberMe {
		tok, err := a.remember.Issue(domain.RememberedUser{Email: user.Email, Name: user.Name})
		if err != nil {
			a.logger.Warn("issue remember token failed", "user_id", user.ID, "err", err)
		} else {
			res.RememberToken = tok
		}
	}
	a.metrics.IncAuth("login", metrics.OutcomeSuccess)
	return res, nil
}

// Register validates the form and creates the account in the auth backend.
// It does not sign the user in.
func (a *App) Register(ctx context.Context, form auth.RegistrationForm) error {
	if err := auth.ValidateRegistration(&form); err != nil {
		a.metrics.IncAuth("register", "invalid")
		return err
	}
	if _, err := a.auth.SignUp(ctx, form.Name, form.Email, form.Password); err != nil {
		if authclient.IsConflict(err) {
			a.metrics.IncAuth("register", "conflict")
		} else {
			a.metrics.IncAuth("register", metrics.OutcomeError)
		}
		var apiErr *authclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return domain.Invalid(apiErr.Message)
		}
		return backendError(err)
	}
	a.metrics.IncAuth("register", metrics.OutcomeSuccess)
	return nil
}

// LoginAsGuest opens a session for the fixed guest user.
func (a *App) LoginAsGuest(ctx context.Context) (LoginResult, error) {
	if !a.cfg.AllowGuest {
		return LoginResult{}, domain.Invalid(MsgGuestDisabled)
	}
	res, err := a.startSession(ctx, store.SessionRecord{User: domain.GuestUser, Guest: true})
	if err != nil {
		return LoginResult{}, err
	}
	a.metrics.IncAuth("guest", metrics.OutcomeSuccess)
	return res, nil
}

// Logout ends the session after confirmation: the auth backend is told (best
// effort), the record is deleted and the workspace with its calls is dropped.
func (a *App) Logout(ctx context.Context, token string, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	if token == "" {
		return nil
	}
	rec, err := a.sessions.Get(ctx, token)
	switch {
	case err == nil && rec.AccessToken != "":
		if err := a.auth.Logout(ctx, rec.AccessToken); err != nil {
			a.logger.Warn("auth backend logout failed", "user_id", rec.User.ID, "err", err)
		}
	case err != nil && !errors.Is(err, store.ErrSessionNotFound):
		a.logger.Warn("load session for logout failed", "err", err)
	}
	a.dropWorkspace(token)
	if err := a.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	a.metrics.IncAuth("logout", metrics.OutcomeSuccess)
	return nil
}

// RestoreSession resumes a live session, or failing that reads the remember
// cookie so the login form can be pre-filled.
func (a *App) RestoreSession(ctx context.Context, sessionToken, rememberToken string) (Restored, error) {
	if sessionToken != "" {
		ws, err := a.Workspace(ctx, sessionToken)
		if err == nil {
			return Restored{Workspace: ws}, nil
		}
		if !errors.Is(err, domain.ErrNoSession) {
			return Restored{}, err
		}
	}
	if rememberToken != "" {
		remembered, err := a.remember.Parse(rememberToken)
		if err == nil {
			return Restored{RememberedEmail: remembered.Email, RememberedName: remembered.Name}, nil
		}
		a.logger.Debug("ignoring invalid remember token", "err", err)
	}
	return Restored{}, nil
}

func (a *App) startSession(ctx context.Context, rec store.SessionRecord) (LoginResult, error) {
	token := util.NewSessionToken()
	rec.CreatedAt = a.now().UTC()
	if err := a.sessions.Save(ctx, token, rec); err != nil {
		return LoginResult{}, fmt.Errorf("save session: %w", err)
	}
	if _, err := a.openWorkspace(token, rec.User); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{SessionToken: token, User: rec.User}, nil
}

// completeUser fills what the backend left out: id, email, and a display
// name taken from the email's local part.
func (a *App) completeUser(u domain.User, email string) domain.User {
	if strings.TrimSpace(u.ID) == "" {
		u.ID = a.newID()
	}
	if strings.TrimSpace(u.Email) == "" {
		u.Email = email
	}
	if strings.TrimSpace(u.Name) == "" {
		local, _, _ := strings.Cut(u.Email, "@")
		u.Name = local
	}
	return u
}

// backendError maps an auth backend failure onto the error taxonomy.
func backendError(err error) error {
	var apiErr *authclient.APIError
	if errors.As(err, &apiErr) {
		return &domain.ServerError{Status: apiErr.Status, Message: apiErr.Message}
	}
	return err
}
