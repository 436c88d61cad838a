package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/go-logr/zapr"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/a2a/server"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/config"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const testAPIVersion = "2025-11-15-preview"

// fakeProject serves the agents directory and the OpenAI-compatible endpoints
// of a single Foundry project mounted at /api/projects/demo.
type fakeProject struct {
	t      *testing.T
	answer []string
}

func (f *fakeProject) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "Bearer test-token", r.Header.Get("Authorization"))
	assert.Equal(f.t, testAPIVersion, r.URL.Query().Get("api-version"))
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/projects/demo/agents/agent-template-assistant":
		_, _ = io.WriteString(w, `{
			"id": "agent_1",
			"name": "agent-template-assistant",
			"versions": {"latest": {"id": "agent_1_v4", "name": "agent-template-assistant", "version": "4"}}
		}`)

	case "/api/projects/demo/agents/pinned/versions/2":
		_, _ = io.WriteString(w, `{"id": "pinned_v2", "name": "pinned", "version": "2"}`)

	case "/api/projects/demo/openai/conversations":
		_, _ = io.WriteString(w, `{"id":"conv_1","object":"conversation","created_at":1700000000,"metadata":{}}`)

	case "/api/projects/demo/openai/responses":
		var body map[string]any
		if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		agent, _ := body["agent"].(map[string]any)
		assert.Equal(f.t, "agent_reference", agent["type"])

		if stream, _ := body["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for i, delta := range f.answer {
				_, _ = fmt.Fprintf(w, "data: {\"type\":\"response.output_text.delta\",\"sequence_number\":%d,\"item_id\":\"msg_1\",\"output_index\":0,\"content_index\":0,\"delta\":%q}\n\n", i+1, delta)
			}
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return
		}
		_, _ = fmt.Fprintf(w, `{
			"id": "resp_1",
			"object": "response",
			"created_at": 1700000000,
			"status": "completed",
			"model": "gpt-4o",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": %q, "annotations": []}]
			}]
		}`, strings.Join(f.answer, ""))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":"not_found","message":"agent not found"}}`)
	}
}

func newTestConfig(t *testing.T, answer ...string) AppConfig {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")

	ts := httptest.NewServer(&fakeProject{t: t, answer: answer})
	t.Cleanup(ts.Close)

	return AppConfig{
		Config: config.Config{
			ProjectEndpoint: ts.URL + "/api/projects/demo",
			AgentName:       config.DefaultAgentName,
			APIVersion:      testAPIVersion,
			Host:            "127.0.0.1",
			Port:            "0",
			ShutdownTimeout: time.Second,
		},
		Logger:      logr.Discard(),
		TokenSource: foundry.StaticToken("test-token"),
	}
}

func newTestApp(t *testing.T, cfg AppConfig) *App {
	t.Helper()
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestNew_ResolvesLatestVersion(t *testing.T) {
	app := newTestApp(t, newTestConfig(t))

	assert.Equal(t, foundry.StateReady, app.Adapter().State())
	assert.Equal(t, foundry.AgentIdentity{Name: "agent-template-assistant", Version: "4"}, app.Adapter().Identity())
}

func TestNew_ExplicitAgentID(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AgentID = "pinned:2"

	app := newTestApp(t, cfg)
	assert.Equal(t, foundry.AgentIdentity{Name: "pinned", Version: "2"}, app.Adapter().Identity())
}

func TestNew_ResolutionFailure(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AgentName = "missing"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, foundry.ErrResolution))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ProjectEndpoint = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ProjectEndpoint.Name())
}

func TestNew_TokenFailure(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.TokenSource = failingTokens{}

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credential")
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", errors.New("no credential")
}

func TestApp_ServesMessageSend(t *testing.T) {
	app := newTestApp(t, newTestConfig(t, "Paris ", "is the capital."))
	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	request := `{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "message/send",
		"params": {
			"message": {
				"kind": "message",
				"messageId": "msg-1",
				"role": "user",
				"parts": [{"kind": "text", "text": "What is the capital of France?"}]
			}
		}
	}`
	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(request))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Error)
	assert.Contains(t, string(out.Result), "Paris is the capital.")

	metrics, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `a2a_bridge_agent_info{name="agent-template-assistant",version="4"} 1`)
	assert.Contains(t, string(body), `a2a_bridge_agent_invocations_total{mode="blocking",outcome="success"} 1`)
}

func TestApp_MCPEndpoint(t *testing.T) {
	cfg := newTestConfig(t)
	bare := newTestApp(t, cfg)
	ts := httptest.NewServer(bare.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + server.MCPPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cfg.MCPEnabled = true
	withMCP := newTestApp(t, cfg)
	ts2 := httptest.NewServer(withMCP.Handler())
	defer ts2.Close()

	resp, err = http.Get(ts2.URL + server.MCPPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
}

func TestApp_Ask(t *testing.T) {
	tests := []struct {
		name   string
		stream bool
	}{
		{name: "blocking", stream: false},
		{name: "streaming", stream: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, newTestConfig(t, "Hel", "lo"))

			var buf bytes.Buffer
			require.NoError(t, app.Ask(context.Background(), "hi", tt.stream, &buf))
			assert.Equal(t, "Hello\n", buf.String())
		})
	}
}

func TestApp_AskEmptyPrompt(t *testing.T) {
	app := newTestApp(t, newTestConfig(t, "unused"))

	var buf bytes.Buffer
	err := app.Ask(context.Background(), "", false, &buf)
	assert.True(t, errors.Is(err, foundry.ErrInvalidInput))
	assert.Empty(t, buf.String())
}

func TestApp_RunClosesAdapterOnCancel(t *testing.T) {
	app, err := New(context.Background(), newTestConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not shut down")
	}
	assert.Equal(t, foundry.StateClosed, app.Adapter().State())

	err = app.Ask(context.Background(), "hi", false, io.Discard)
	assert.True(t, errors.Is(err, foundry.ErrNotReady))
}

// logLines collects funcr output from concurrent goroutines.
type logLines struct {
	mu    sync.Mutex
	lines []logLine
}

type logLine struct {
	name string
	args string
}

func (l *logLines) logger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.lines = append(l.lines, logLine{name: prefix, args: args})
	}, funcr.Options{Verbosity: 1})
}

func (l *logLines) invocations() []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logLine
	for _, line := range l.lines {
		if strings.Contains(line.args, `"invocationID"=`) {
			out = append(out, line)
		}
	}
	return out
}

func TestApp_InvocationLoggerNameSameOnEverySurface(t *testing.T) {
	tests := []struct {
		name   string
		invoke func(t *testing.T, app *App)
		value  string
	}{
		{
			name: "cli",
			invoke: func(t *testing.T, app *App) {
				require.NoError(t, app.Ask(context.Background(), "hi", false, io.Discard))
			},
		},
		{
			name: "a2a",
			invoke: func(t *testing.T, app *App) {
				ts := httptest.NewServer(app.Handler())
				defer ts.Close()
				request := `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"kind":"message","messageId":"msg-1","role":"user","parts":[{"kind":"text","text":"hi"}]}}}`
				resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(request))
				require.NoError(t, err)
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			},
			value: `"taskID"=`,
		},
		{
			name: "mcp",
			invoke: func(t *testing.T, app *App) {
				ctx := context.Background()
				clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
				serverSession, err := app.MCP().Server().Connect(ctx, serverTransport, nil)
				require.NoError(t, err)
				defer serverSession.Close()

				client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
				session, err := client.Connect(ctx, clientTransport, nil)
				require.NoError(t, err)
				defer session.Close()

				res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
					Name:      "ask_agent",
					Arguments: map[string]any{"prompt": "hi"},
				})
				require.NoError(t, err)
				assert.False(t, res.IsError)
			},
			value: `"tool"="ask_agent"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &logLines{}
			cfg := newTestConfig(t, "Hello")
			cfg.Logger = logs.logger()
			app := newTestApp(t, cfg)

			tt.invoke(t, app)

			lines := logs.invocations()
			require.NotEmpty(t, lines)
			for _, line := range lines {
				assert.Equal(t, "foundry", line.name, line.args)
				if tt.value != "" {
					assert.Contains(t, line.args, tt.value)
				}
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(AppConfig{})

	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, config.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, config.DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, config.DefaultTokenScope, cfg.TokenScope)
	assert.Equal(t, config.DefaultServiceName, cfg.ServiceName)
	assert.Equal(t, config.DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.NotNil(t, cfg.Logger.GetSink())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := applyDefaults(AppConfig{Config: config.Config{
		Port:            "9090",
		ShutdownTimeout: 30 * time.Second,
	}})

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestBuildZapLogger(t *testing.T) {
	failing := func(...zap.Option) (*zap.Logger, error) { return nil, errors.New("cannot open sink") }
	working := func(...zap.Option) (*zap.Logger, error) { return zap.NewExample(), nil }

	t.Run("first builder wins", func(t *testing.T) {
		assert.NotNil(t, buildZapLogger(working, failing))
	})

	t.Run("falls back to next builder", func(t *testing.T) {
		assert.NotNil(t, buildZapLogger(failing, working))
	})

	t.Run("all builders fail", func(t *testing.T) {
		zapLogger := buildZapLogger(failing, failing)
		require.NotNil(t, zapLogger)
		assert.NotPanics(t, func() {
			zapr.NewLogger(zapLogger).Info("still usable")
			_ = zapLogger.Sync()
		})
	})
}

func TestNewLogger(t *testing.T) {
	logger, zapLogger := NewLogger("debug")
	require.NotNil(t, zapLogger)
	assert.NotNil(t, logger.GetSink())
	assert.True(t, zapLogger.Core().Enabled(zapcore.DebugLevel))
}
