package notesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"askmynotes/internal/metrics"
	"askmynotes/pkg/domain"
)

const healthTimeout = 5 * time.Second

// TokenSigner mints a bearer token for calls to the notes backend.
type TokenSigner interface {
	Sign(audience string) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Signer   TokenSigner
	Audience string
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	Breaker  *BreakerConfig
}

// BreakerConfig tunes the circuit breaker in front of the notes backend.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig trips after most of a burst of calls fail.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Client calls the notes backend: upload, ask, study-mode, health, create-subject.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	signer     TokenSigner
	audience   string
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// New builds a notes backend client. A zero Timeout means none.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bc := DefaultBreakerConfig()
	if opts.Breaker != nil {
		bc = *opts.Breaker
	}
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		signer:     opts.Signer,
		audience:   opts.Audience,
		metrics:    opts.Metrics,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notes-backend",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: isBreakerSuccess,
	})
	return c
}

// Upload sends one file as multipart field "file" to /upload/{subject}.
func (c *Client) Upload(ctx context.Context, subject, filename string, data []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return c.call(ctx, "upload", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/"+url.PathEscape(subject), bytes.NewReader(body.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	}, "Upload failed", nil)
}

// Ask posts a question scoped to subject.
func (c *Client) Ask(ctx context.Context, subject, question string) (domain.Answer, error) {
	var resp answerResponse
	err := c.call(ctx, "ask", jsonRequest(ctx, http.MethodPost, c.baseURL+"/ask/"+url.PathEscape(subject), map[string]string{"question": question}), "API error", &resp)
	if err != nil {
		return domain.Answer{}, err
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return domain.Answer{}, &domain.ServerError{Status: http.StatusOK, Message: msg}
	}
	return resp.toAnswer(), nil
}

// StudyMode requests a generated question set for subject.
func (c *Client) StudyMode(ctx context.Context, subject string) (domain.StudySet, error) {
	var resp studyResponse
	err := c.call(ctx, "study-mode", jsonRequest(ctx, http.MethodPost, c.baseURL+"/study-mode", map[string]string{"subject_name": subject}), "API error", &resp)
	if err != nil {
		return domain.StudySet{}, err
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return domain.StudySet{}, &domain.ServerError{Status: http.StatusOK, Message: msg}
	}
	set, dropped := resp.toStudySet()
	if dropped > 0 {
		c.logger.Warn("dropped malformed multiple-choice items", "subject", subject, "dropped", dropped)
	}
	return set, nil
}

// Health probes GET /health with a short deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return c.call(ctx, "health", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	}, "API error", nil)
}

// CreateSubject tells the backend about a new subject.
func (c *Client) CreateSubject(ctx context.Context, name string) error {
	return c.call(ctx, "create-subject", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/create-subject?name="+url.QueryEscape(name), nil)
	}, "API error", nil)
}

func jsonRequest(ctx context.Context, method, target string, payload any) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

// call runs one request through the breaker. Non-2xx becomes a ServerError
// whose message is "<failPrefix>: <status line>".
func (c *Client) call(ctx context.Context, endpoint string, build func() (*http.Request, error), failPrefix string, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		c.metrics.ObserveBackend("notes", endpoint, outcome, time.Since(start))
	}()

	_, err = c.breaker.Execute(func() (interface{}, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		if err := c.authorize(req); err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &domain.TransportError{Op: endpoint, Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			return nil, &domain.ServerError{
				Status:  resp.StatusCode,
				Message: fmt.Sprintf("%s: %s", failPrefix, resp.Status),
			}
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &domain.ServerError{Status: resp.StatusCode, Message: "invalid response from server: " + err.Error()}
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.TransportError{Op: endpoint, Err: fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)}
	}
	return err
}

func (c *Client) authorize(req *http.Request) error {
	if c.signer == nil {
		return nil
	}
	token, err := c.signer.Sign(c.audience)
	if err != nil {
		return fmt.Errorf("sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// isBreakerSuccess counts only backend-side failures against the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *domain.ServerError
	if errors.As(err, &se) {
		return se.Status < http.StatusInternalServerError
	}
	return false
}
