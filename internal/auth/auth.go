// Package auth manages the bearer credential used against the Appmixer API.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/appmixer-mcp/internal/logging"
	"github.com/standardbeagle/appmixer-mcp/internal/metrics"
)

// LoginPath is the login exchange endpoint relative to the base URL.
const LoginPath = "/user/auth"

// DefaultLoginTimeout bounds a login exchange when Options.Timeout is zero.
const DefaultLoginTimeout = 30 * time.Second

// AuthError reports a failed credential renewal.
type AuthError struct {
	Status int // HTTP status of the login exchange, 0 if none was received
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := "auth: " + e.Reason
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsValid reports whether token is a JWT whose exp claim lies in the future.
// The signature is not verified. Any decode failure means invalid.
func IsValid(token string) bool {
	return isValidAt(token, time.Now())
}

func isValidAt(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.After(now)
}

// Options configures a Manager.
type Options struct {
	BaseURL  string
	Token    string // initial credential, may be empty or expired
	Username string
	Password string

	// Timeout bounds each login exchange. Zero means DefaultLoginTimeout.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// Manager holds the current credential and renews it through the login
// exchange when it is missing or expired. Concurrent callers share one
// in-flight login; each stops waiting when its own context ends.
type Manager struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	client   *http.Client
	logger   logging.Logger
	metrics  *metrics.Metrics

	renewals singleflight.Group

	mu    sync.Mutex
	token string
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		timeout:  opts.Timeout,
		client:   opts.HTTPClient,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		token:    opts.Token,
	}
	if m.timeout <= 0 {
		m.timeout = DefaultLoginTimeout
	}
	if m.client == nil {
		m.client = http.DefaultClient
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}
	m.logger = m.logger.With("component", "auth")
	return m
}

// Current returns the held credential without checking it.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// EnsureValid returns a valid credential, logging in first if the held one
// is missing or expired. On failure the held credential is left unchanged.
//
// The login itself is detached from ctx and bounded by the login timeout, so
// one cancelled caller does not fail the others waiting on it.
func (m *Manager) EnsureValid(ctx context.Context) (string, error) {
	if token := m.Current(); IsValid(token) {
		return token, nil
	}

	ch := m.renewals.DoChan("login", func() (any, error) {
		return m.renew(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &AuthError{Reason: "waiting for token renewal", Err: ctx.Err()}
	}
}

func (m *Manager) renew(ctx context.Context) (string, error) {
	// A caller that lost the race to a finished login finds a fresh token.
	if token := m.Current(); IsValid(token) {
		return token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	token, err := m.login(ctx)
	m.metrics.ObserveTokenRenewal(err)
	if err != nil {
		m.logger.Warn("token renewal failed", "error", err)
		return "", err
	}
	m.logger.Debug("token renewed")

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return token, nil
}

// TokenContext returns the credential as a bearer oauth2.Token, renewing it
// under ctx when needed.
func (m *Manager) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	token, err := m.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// Token implements oauth2.TokenSource. Prefer TokenContext when a request
// context is available.
func (m *Manager) Token() (*oauth2.Token, error) {
	return m.TokenContext(context.Background())
}

var _ oauth2.TokenSource = (*Manager)(nil)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (m *Manager) login(ctx context.Context) (string, error) {
	if m.username == "" || m.password == "" {
		return "", &AuthError{Reason: "no username and password configured"}
	}

	body, err := json.Marshal(loginRequest{Username: m.username, Password: m.password})
	if err != nil {
		return "", &AuthError{Reason: "encode login request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+LoginPath, bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Reason: "build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &AuthError{Reason: "login request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Status: resp.StatusCode, Reason: "read login response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{Status: resp.StatusCode, Reason: "login rejected"}
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Reason: "decode login response", Err: err}
	}
	if lr.Token == "" {
		return "", &AuthError{Status: resp.StatusCode, Reason: "login response has no token"}
	}
	return lr.Token, nil
}
