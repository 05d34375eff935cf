// Package events follows the Appmixer push stream and reports gateway
// changes.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/google/uuid"

	"github.com/standardbeagle/appmixer-mcp/internal/appmixer"
	"github.com/standardbeagle/appmixer-mcp/internal/logging"
	"github.com/standardbeagle/appmixer-mcp/internal/metrics"
)

// Event types that change the set of gateway tools.
const (
	EventGatewayAdd    = "gateway-add"
	EventGatewayDelete = "gateway-delete"
)

// DefaultReconnectDelay is the pause between a lost connection and the next
// attempt.
const DefaultReconnectDelay = 5 * time.Second

// ErrAlreadyRunning is returned by Run when the monitor is already running.
var ErrAlreadyRunning = errors.New("events: monitor already running")

var errStreamEnded = errors.New("events: stream ended")

// Event is one decoded push-stream frame.
type Event struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// ChangesTools reports whether the event adds or removes gateway tools.
func (e Event) ChangesTools() bool {
	return e.Type == EventGatewayAdd || e.Type == EventGatewayDelete
}

// Handler receives decoded events. It runs on the monitor goroutine.
type Handler func(Event)

// State is the connection state of a Monitor.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// TokenProvider supplies a valid credential for the stream URL.
type TokenProvider interface {
	EnsureValid(ctx context.Context) (string, error)
}

// Options configures a Monitor.
type Options struct {
	BaseURL        string
	Credentials    TokenProvider
	HTTPClient     *http.Client
	ReconnectDelay time.Duration
	Logger         logging.Logger
	Metrics        *metrics.Metrics
}

// Monitor keeps one connection to the push stream open, reconnecting after a
// fixed delay whenever it fails or ends.
type Monitor struct {
	baseURL string
	creds   TokenProvider
	client  *http.Client
	delay   time.Duration
	logger  logging.Logger
	metrics *metrics.Metrics

	state    atomic.Int32
	running  atomic.Bool
	attempts atomic.Int64
}

// NewMonitor creates a Monitor. It does not connect until Run is called.
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		creds:   opts.Credentials,
		client:  opts.HTTPClient,
		delay:   opts.ReconnectDelay,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if m.client == nil {
		m.client = http.DefaultClient
	}
	if m.delay <= 0 {
		m.delay = DefaultReconnectDelay
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}
	m.logger = m.logger.With("component", "events")
	return m
}

// State returns the current connection state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Attempts returns the number of connection attempts made so far.
func (m *Monitor) Attempts() int64 {
	return m.attempts.Load()
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
}

// Run connects to the push stream and delivers events to onMessage until ctx
// is cancelled. Connection failures are never fatal: after each one Run waits
// the reconnect delay and tries again. Run returns ctx.Err() once cancelled.
func (m *Monitor) Run(ctx context.Context, onMessage Handler) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)
	defer m.setState(StateStopped)

	for {
		m.setState(StateConnecting)
		err := m.connect(ctx, onMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("event stream disconnected", "error", err, "retry_in", m.delay)

		timer := time.NewTimer(m.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Monitor) connect(ctx context.Context, onMessage Handler) error {
	m.attempts.Add(1)
	logger := m.logger.With("conn_id", uuid.NewString())

	resp, err := m.open(ctx)
	m.metrics.ObserveStreamConnect(err)
	if err != nil {
		return err
	}

	decoder := ssestream.NewDecoder(resp)
	defer decoder.Close()

	m.setState(StateOpen)
	logger.Info("event stream open")

	for decoder.Next() {
		frame := decoder.Event()
		if frame.Type != "" && frame.Type != "message" {
			logger.Debug("skipping named event", "event", frame.Type)
			continue
		}
		data := bytes.TrimSpace(frame.Data)
		if len(data) == 0 {
			continue
		}

		ev := Event{Raw: append(json.RawMessage(nil), data...)}
		if err := json.Unmarshal(data, &ev); err != nil {
			m.metrics.IncStreamBadFrame()
			logger.Warn("skipping malformed event", "error", err, "data", string(data))
			continue
		}

		m.metrics.ObserveStreamEvent(ev.Type)
		logger.Debug("event received", "type", ev.Type)
		if onMessage != nil {
			onMessage(ev)
		}
	}

	if err := decoder.Err(); err != nil {
		return err
	}
	return errStreamEnded
}

func (m *Monitor) open(ctx context.Context) (*http.Response, error) {
	if m.creds == nil {
		return nil, errors.New("events: no credentials")
	}
	token, err := m.creds.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	target := m.baseURL + appmixer.EventsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.client.Do(req)
	if err != nil {
		// The URL carries the credential; report the bare endpoint.
		return nil, fmt.Errorf("GET %s: %w", target, unwrapURLError(err))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &appmixer.HTTPError{
			Status: resp.StatusCode,
			Method: http.MethodGet,
			Target: target,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
