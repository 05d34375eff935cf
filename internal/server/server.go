// Package server exposes the tool registry over the Model Context Protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/standardbeagle/appmixer-mcp/internal/appmixer"
	"github.com/standardbeagle/appmixer-mcp/internal/auth"
	"github.com/standardbeagle/appmixer-mcp/internal/config"
	"github.com/standardbeagle/appmixer-mcp/internal/events"
	"github.com/standardbeagle/appmixer-mcp/internal/logging"
	"github.com/standardbeagle/appmixer-mcp/internal/metrics"
	"github.com/standardbeagle/appmixer-mcp/internal/registry"
)

const serverName = "appmixer-mcp"

// Version is reported to MCP clients. Overridden at build time.
var Version = "0.1.0"

// Options configures a Server.
type Options struct {
	Registry *registry.Registry

	// Monitor, when set, is run by Start and its gateway events trigger
	// tools/list_changed notifications.
	Monitor *events.Monitor

	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// Server is the appmixer-mcp server.
type Server struct {
	mcpServer *mcp.Server
	registry  *registry.Registry
	monitor   *events.Monitor
	metrics   *metrics.Metrics
	logger    logging.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	monitorDone chan struct{}
}

// New creates a Server around an existing registry.
func New(opts Options) *Server {
	s := &Server{
		registry: opts.Registry,
		monitor:  opts.Monitor,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: Version,
		},
		&mcp.ServerOptions{
			Capabilities: &mcp.ServerCapabilities{
				Tools: &mcp.ToolCapabilities{ListChanged: true},
			},
			Logger: logging.Slog(s.logger),
		},
	)
	s.mcpServer.AddReceivingMiddleware(s.toolsMiddleware)
	s.registerTools()

	return s
}

// NewFromConfig wires the credential manager, API client, registry and
// event monitor for cfg.
func NewFromConfig(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}

	m := metrics.New(prometheus.NewRegistry())
	creds := auth.NewManager(auth.Options{
		BaseURL:  cfg.BaseURL,
		Token:    cfg.AccessToken,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.RequestTimeout,
		Logger:   logger,
		Metrics:  m,
	})
	client := appmixer.NewClient(appmixer.Options{
		BaseURL:     cfg.BaseURL,
		Credentials: creds,
		Timeout:     cfg.RequestTimeout,
		UserAgent:   serverName + "/" + Version,
		Logger:      logger,
	})
	reg := registry.New(client, registry.WithLogger(logger), registry.WithMetrics(m))
	monitor := events.NewMonitor(events.Options{
		BaseURL:        cfg.BaseURL,
		Credentials:    creds,
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         logger,
		Metrics:        m,
	})

	return New(Options{
		Registry: reg,
		Monitor:  monitor,
		Metrics:  m,
		Logger:   logger,
	}), nil
}

// Start runs the event monitor in the background. It is a no-op without a
// monitor or when already started.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.monitor == nil || s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.monitorDone = done

	go func() {
		defer close(done)
		if err := s.monitor.Run(ctx, s.handleEvent); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("event monitor stopped", "error", err)
		}
	}()
	return nil
}

// RunStdio runs the server using stdio transport.
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	transport := &mcp.StdioTransport{}
	return s.mcpServer.Run(ctx, transport)
}

// Handler returns the HTTP handler serving MCP over SSE at / and
// Prometheus metrics at /metrics.
func (s *Server) Handler() http.Handler {
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/", sseHandler)
	return mux
}

// RunHTTP runs the server using HTTP/SSE transport until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, port int) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("appmixer-mcp server running", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// Close stops the event monitor and waits for it to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.monitorDone
	s.cancel, s.monitorDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Registry returns the tool registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Monitor returns the event monitor, if any.
func (s *Server) Monitor() *events.Monitor {
	return s.monitor
}
