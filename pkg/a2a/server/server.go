// Package server serves the A2A JSON-RPC endpoint, the agent card and the
// operational endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	a2atype "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// LegacyAgentCardPath is the pre-0.3 well-known location some clients still
// probe.
const LegacyAgentCardPath = "/.well-known/agent.json"

// MCPPath is where the optional MCP endpoint is mounted.
const MCPPath = "/mcp"

// ServerConfig holds configuration for the A2A server.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration

	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
	// MCP, when set, is served at /mcp.
	MCP http.Handler
}

// A2AServer wraps the A2A handler with health endpoints and graceful shutdown.
type A2AServer struct {
	httpServer *http.Server
	logger     logr.Logger
	config     ServerConfig
}

// NewA2AServer builds the HTTP surface around executor.
func NewA2AServer(agentCard a2atype.AgentCard, executor a2asrv.AgentExecutor, logger logr.Logger, config ServerConfig, handlerOpts ...a2asrv.RequestHandlerOption) *A2AServer {
	logger = logger.WithName("server")

	requestHandler := a2asrv.NewHandler(executor, handlerOpts...)
	jsonrpcHandler := a2asrv.NewJSONRPCHandler(requestHandler)
	cardHandler := a2asrv.NewStaticAgentCardHandler(&agentCard)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	RegisterHealthEndpoints(r)
	r.Get(a2asrv.WellKnownAgentCardPath, cardHandler.ServeHTTP)
	r.Get(LegacyAgentCardPath, cardHandler.ServeHTTP)
	if config.Metrics != nil {
		r.Handle("/metrics", config.Metrics)
	}
	if config.MCP != nil {
		r.Handle(MCPPath, config.MCP)
	}
	r.Handle("/", jsonrpcHandler)

	return &A2AServer{
		httpServer: &http.Server{
			Addr:              config.Addr,
			Handler:           otelhttp.NewHandler(r, "a2a-bridge"),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		config: config,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *A2AServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully within the configured timeout.
func (s *A2AServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server listen failed: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *A2AServer) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting A2A server", "addr", ln.Addr().String())

	listenErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}

// requestLogger puts the server logger into each request context and logs the
// request once it completes.
func requestLogger(logger logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logr.NewContext(r.Context(), logger)))
			logger.V(1).Info("Handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"elapsed", time.Since(start),
			)
		})
	}
}
