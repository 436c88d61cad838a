// Package app wires configuration, agent resolution, the agent client and the
// HTTP surface into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/a2a"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/a2a/server"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/config"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/foundry"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/mcp"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppConfig holds configuration for the bridge process.
type AppConfig struct {
	config.Config

	// Logger is the structured logger. If unset, a production zap logger is created.
	Logger logr.Logger

	// TokenSource overrides the Azure credential chain.
	TokenSource foundry.TokenSource

	// HTTPClient overrides the authenticated client shared by the directory
	// and the completion service. When set, TokenSource is ignored.
	HTTPClient *http.Client

	// Directory and Service override the Foundry clients built from the
	// project endpoint.
	Directory foundry.Directory
	Service   foundry.CompletionService

	// TraceExporter overrides the OTLP exporter when tracing is enabled.
	TraceExporter sdktrace.SpanExporter

	// HandlerOpts are appended to the A2A request handler options.
	HandlerOpts []a2asrv.RequestHandlerOption
}

// App owns the resolved agent, the adapter bound to it and the HTTP surface
// that exposes it.
type App struct {
	cfg     AppConfig
	logger  logr.Logger
	adapter *foundry.Adapter
	metrics *telemetry.Metrics
	server  *server.A2AServer

	shutdownTracing telemetry.ShutdownFunc
}

// New resolves the configured agent and wires the bridge around it. Any
// failure here is fatal to startup.
func New(ctx context.Context, cfg AppConfig) (*App, error) {
	cfg = applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := cfg.Logger
	ctx = logr.NewContext(ctx, log)

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.ServiceName,
		Exporter:    cfg.TraceExporter,
	})
	if err != nil {
		return nil, err
	}
	if cfg.TracingEnabled {
		log.Info("Tracing enabled", "serviceName", cfg.ServiceName)
	}

	app, err := build(ctx, cfg)
	if err != nil {
		if shutdownErr := shutdownTracing(context.WithoutCancel(ctx)); shutdownErr != nil {
			log.Error(shutdownErr, "Failed to shut down tracing")
		}
		return nil, err
	}
	app.shutdownTracing = shutdownTracing
	return app, nil
}

func build(ctx context.Context, cfg AppConfig) (*App, error) {
	log := cfg.Logger

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tokens := cfg.TokenSource
		if tokens == nil {
			var err error
			tokens, err = foundry.NewAzureTokenSource(cfg.TokenScope)
			if err != nil {
				return nil, err
			}
		}
		if err := foundry.ProbeToken(ctx, tokens); err != nil {
			return nil, fmt.Errorf("failed to acquire token for %s: %w", cfg.TokenScope, err)
		}
		httpClient = foundry.NewHTTPClient(tokens)
	}

	directory := cfg.Directory
	if directory == nil {
		directory = foundry.NewDirectoryClient(cfg.ProjectEndpoint, cfg.APIVersion, httpClient)
	}

	identity, err := foundry.Resolve(ctx, directory, cfg.AgentID, cfg.AgentName)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	metrics.SetAgent(identity.Name, identity.Version)

	service := cfg.Service
	if service == nil {
		service = foundry.NewResponsesService(cfg.ProjectEndpoint, cfg.APIVersion, httpClient)
	}

	adapter := foundry.NewAdapter(service,
		foundry.WithLogger(log),
		foundry.WithRecorder(metrics),
	)
	if err := adapter.Start(identity); err != nil {
		return nil, err
	}

	serverConfig := server.ServerConfig{
		Addr:            cfg.Addr(),
		ShutdownTimeout: cfg.ShutdownTimeout,
		Metrics:         metrics.Handler(),
	}
	if cfg.MCPEnabled {
		serverConfig.MCP = mcp.NewHandler(adapter, adapter.Identity, telemetry.ServiceVersion, log)
		log.Info("MCP endpoint enabled", "path", server.MCPPath)
	}

	card := a2a.BuildAgentCard(a2a.CardConfig{
		BaseURL:   cfg.BaseURL,
		Version:   telemetry.ServiceVersion,
		Streaming: cfg.Streaming,
	})
	executor := a2a.NewTranslator(adapter, cfg.Streaming, log)

	log.Info("Bridge configured",
		"agent", identity.String(),
		"streaming", cfg.Streaming,
		"mcp", cfg.MCPEnabled,
		"baseURL", cfg.BaseURL)

	return &App{
		cfg:     cfg,
		logger:  log,
		adapter: adapter,
		metrics: metrics,
		server:  server.NewA2AServer(card, executor, log, serverConfig, cfg.HandlerOpts...),
	}, nil
}

// Run serves A2A until ctx is cancelled, then releases the agent client.
func (a *App) Run(ctx context.Context) error {
	serveErr := a.server.Run(ctx)
	return errors.Join(serveErr, a.Close(context.WithoutCancel(ctx)))
}

// Close releases the agent client, waiting up to the shutdown timeout for
// in-flight invocations, and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.adapter.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close agent client: %w", err))
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ask sends one prompt to the agent and writes the answer to w. With stream
// set, fragments are written as they arrive.
func (a *App) Ask(ctx context.Context, prompt string, stream bool, w io.Writer) error {
	ctx = logr.NewContext(ctx, a.logger)

	if !stream {
		answer, err := a.adapter.InvokeBlocking(ctx, prompt)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, answer)
		return err
	}

	fragments, err := a.adapter.InvokeStreaming(ctx, prompt)
	if err != nil {
		return err
	}
	for fragment, err := range fragments {
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w)
	return err
}

// MCP returns an MCP handler answering through the agent client.
func (a *App) MCP() *mcp.Handler {
	return mcp.NewHandler(a.adapter, a.adapter.Identity, telemetry.ServiceVersion, a.logger)
}

// Handler returns the HTTP handler serving the bridge.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Adapter returns the agent client.
func (a *App) Adapter() *foundry.Adapter {
	return a.adapter
}

// Logger returns the logger used by this app.
func (a *App) Logger() logr.Logger {
	return a.logger
}

// applyDefaults fills in zero-value fields with the registered defaults.
func applyDefaults(cfg AppConfig) AppConfig {
	if cfg.Port == "" {
		cfg.Port = config.DefaultPort
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = config.DefaultAPIVersion
	}
	if cfg.TokenScope == "" {
		cfg.TokenScope = config.DefaultTokenScope
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = config.DefaultServiceName
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = config.DefaultShutdownTimeout
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger, _ = NewLogger(cfg.LogLevel)
	}
	return cfg
}

// NewLogger creates a production zap logger wrapped as logr.Logger. It also
// returns the zap logger so callers can Sync it on exit.
func NewLogger(level string) (logr.Logger, *zap.Logger) {
	zapLevel := ParseLevel(level)

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	devConfig := zap.NewDevelopmentConfig()
	devConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	zapLogger := buildZapLogger(zapConfig.Build, devConfig.Build)
	return zapr.NewLogger(zapLogger), zapLogger
}

// buildZapLogger tries each builder in order and falls back to a no-op logger
// when none succeeds.
func buildZapLogger(builders ...func(...zap.Option) (*zap.Logger, error)) *zap.Logger {
	for _, build := range builders {
		if zapLogger, err := build(); err == nil && zapLogger != nil {
			return zapLogger
		}
	}
	return zap.NewNop()
}

// ParseLevel maps a log level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
