// Package appmixer is an authenticated client for the Appmixer REST API.
package appmixer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/standardbeagle/appmixer-mcp/internal/logging"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "appmixer-mcp"

// maxErrorBody bounds the response body kept on an HTTPError.
const maxErrorBody = 4096

// HTTPError reports a non-2xx response to an authenticated call.
type HTTPError struct {
	Status int
	Method string
	Target string
	Body   string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("appmixer: %s %s: %d %s", e.Method, e.Target, e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// ParseError reports a payload that is not the JSON an operation expects.
type ParseError struct {
	Target string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("appmixer: parse %s: %v", e.Target, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	BaseURL string

	// Credentials supplies the bearer token before every request. Sources
	// that also implement TokenContext (auth.Manager) renew under the
	// request context.
	Credentials oauth2.TokenSource

	// Transport is the underlying round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// Timeout bounds each request, credential renewal included. Zero means
	// no timeout.
	Timeout   time.Duration
	UserAgent string
	Logger    logging.Logger
}

// Client issues authenticated requests against an Appmixer instance.
type Client struct {
	baseURL   string
	creds     oauth2.TokenSource
	http      *http.Client
	timeout   time.Duration
	userAgent string
	logger    logging.Logger
}

// contextTokenSource is a credential source whose renewal honors ctx.
type contextTokenSource interface {
	TokenContext(ctx context.Context) (*oauth2.Token, error)
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		creds:     opts.Credentials,
		http:      &http.Client{Transport: base},
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	c.logger = c.logger.With("component", "appmixer")
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL resolves target against the base URL. Absolute http(s) targets are
// returned unchanged.
func (c *Client) URL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return c.baseURL + "/" + strings.TrimLeft(target, "/")
}

// Call performs an authenticated request and decodes the response as JSON.
// A 2xx body that is not JSON is returned as a string. A nil body sends no
// payload; an empty 2xx body yields nil.
func (c *Client) Call(ctx context.Context, target, method string, body any) (any, error) {
	data, err := c.do(ctx, target, method, body)
	if err != nil {
		return nil, err
	}
	return decodeLoose(data), nil
}

func (c *Client) do(ctx context.Context, target, method string, body any) ([]byte, error) {
	if method == "" {
		method = http.MethodGet
	}
	url := c.URL(target)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, url, err)
	}

	c.logger.Debug("request complete",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &HTTPError{
			Status: resp.StatusCode,
			Method: method,
			Target: url,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}

func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	if c.creds == nil {
		return nil, errors.New("appmixer: no credentials configured")
	}
	if cs, ok := c.creds.(contextTokenSource); ok {
		return cs.TokenContext(ctx)
	}
	return c.creds.Token()
}

func decodeLoose(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}

func (c *Client) decode(ctx context.Context, target, method string, body, out any) error {
	data, err := c.do(ctx, target, method, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Target: c.URL(target), Err: err}
	}
	return nil
}
