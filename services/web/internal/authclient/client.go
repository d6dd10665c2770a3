package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"askmynotes/internal/metrics"
	"askmynotes/pkg/domain"
)

// Client calls the auth backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Collector
}

// APIError represents an auth backend error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Session is what a successful login returns.
type Session struct {
	User        domain.User
	AccessToken string
}

// NewClient constructs an auth backend client. A zero timeout means none.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Collector) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return Session{}, &APIError{Status: http.StatusBadGateway, Message: "auth backend returned no token"}
	}
	return Session{User: resp.User, AccessToken: resp.Token}, nil
}

func (c *Client) SignUp(ctx context.Context, name, email, password string) (domain.User, error) {
	payload := map[string]string{"name": name, "email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, "signup", http.MethodPost, "/auth/signup", "", payload, &resp); err != nil {
		return domain.User{}, err
	}
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, "logout", http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, endpoint, method, path, token string, payload any, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		c.metrics.ObserveBackend("auth", endpoint, outcome, time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: "auth " + endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(errResp.Code)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "invalid auth response: " + err.Error()}
	}
	return nil
}

// IsCredentialError reports whether err means the backend rejected the credentials.
func IsCredentialError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusForbidden
}

// IsConflict reports whether err is an account-already-exists response.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}
