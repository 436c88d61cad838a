package config

import (
	"time"

	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/env"
)

const (
	DefaultAgentName       = "agent-template-assistant"
	DefaultBaseURL         = "http://localhost:8080"
	DefaultPort            = "8080"
	DefaultAPIVersion      = "2025-11-15-preview"
	DefaultTokenScope      = "https://ai.azure.com/.default"
	DefaultServiceName     = "foundry-a2a-bridge"
	DefaultShutdownTimeout = 5 * time.Second
)

// Foundry project and agent selection.
var (
	ProjectEndpoint = env.RegisterRequiredStringVar(
		"AZURE_EXISTING_AIPROJECT_ENDPOINT",
		"Azure AI Foundry project endpoint, e.g. https://<resource>.services.ai.azure.com/api/projects/<project>.",
		env.ComponentFoundry,
	)

	AgentID = env.RegisterStringVar(
		"AZURE_EXISTING_AGENT_ID",
		"",
		"Explicit agent identifier in name:version form. When empty the agent is discovered by name.",
		env.ComponentFoundry,
	)

	AgentName = env.RegisterStringVar(
		"AZURE_AI_AGENT_NAME",
		DefaultAgentName,
		"Agent name used for discovery when no explicit agent ID is set. The latest version is used.",
		env.ComponentFoundry,
	)

	APIVersion = env.RegisterStringVar(
		"AZURE_AI_API_VERSION",
		DefaultAPIVersion,
		"api-version query parameter sent to the Foundry agents and OpenAI-compatible endpoints.",
		env.ComponentFoundry,
	)

	TokenScope = env.RegisterStringVar(
		"AZURE_AI_TOKEN_SCOPE",
		DefaultTokenScope,
		"OAuth scope requested from the Azure credential chain.",
		env.ComponentFoundry,
	)
)

// A2A server surface.
var (
	BaseURL = env.RegisterStringVar(
		"A2A_SERVER_BASE_URL",
		DefaultBaseURL,
		"Public URL advertised in the agent card.",
		env.ComponentServer,
	)

	Host = env.RegisterStringVar(
		"A2A_SERVER_HOST",
		"",
		"Address to bind to. Empty binds to all interfaces.",
		env.ComponentServer,
	)

	Port = env.RegisterStringVar(
		"A2A_SERVER_PORT",
		DefaultPort,
		"Port the A2A server listens on.",
		env.ComponentServer,
	)

	Streaming = env.RegisterBoolVar(
		"A2A_STREAMING",
		false,
		"Advertise streaming in the agent card and answer message/stream with incremental artifacts.",
		env.ComponentServer,
	)

	MCPEnabled = env.RegisterBoolVar(
		"A2A_MCP_ENABLED",
		false,
		"Mount an MCP endpoint at /mcp exposing the agent as an ask_agent tool.",
		env.ComponentServer,
	)

	ShutdownTimeout = env.RegisterDurationVar(
		"A2A_SHUTDOWN_TIMEOUT",
		DefaultShutdownTimeout,
		"Grace period for draining HTTP requests and in-flight invocations on shutdown.",
		env.ComponentServer,
	)

	LogLevel = env.RegisterStringVar(
		"LOG_LEVEL",
		"info",
		"Log level: debug, info, warn, error.",
		env.ComponentServer,
	)
)

// Telemetry.
var (
	TracingEnabled = env.RegisterBoolVar(
		"OTEL_TRACING_ENABLED",
		false,
		"Export traces over OTLP/gRPC. The exporter honours the standard OTEL_EXPORTER_OTLP_* variables.",
		env.ComponentTelemetry,
	)

	ServiceName = env.RegisterStringVar(
		"OTEL_SERVICE_NAME",
		DefaultServiceName,
		"service.name resource attribute on exported spans.",
		env.ComponentTelemetry,
	)
)
