// Package mcp exposes the bridged agent as a single MCP tool over the
// streamable HTTP transport.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-logr/logr"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/foundry"
)

const (
	serverName   = "foundry-a2a-bridge"
	askAgentTool = "ask_agent"
)

// Asker answers a prompt in full.
type Asker interface {
	InvokeBlocking(ctx context.Context, prompt string) (string, error)
}

// AskAgentInput is the ask_agent tool input.
type AskAgentInput struct {
	Prompt string `json:"prompt" jsonschema:"the question or instruction for the agent"`
}

// AskAgentOutput is the ask_agent tool output.
type AskAgentOutput struct {
	Agent  string `json:"agent,omitempty" jsonschema:"the answering agent as name:version"`
	Answer string `json:"answer" jsonschema:"the agent's complete answer"`
}

// Handler serves MCP requests and answers ask_agent through an Asker.
type Handler struct {
	asker    Asker
	identity func() foundry.AgentIdentity
	base     logr.Logger
	log      logr.Logger

	server      *mcpsdk.Server
	httpHandler *mcpsdk.StreamableHTTPHandler
}

// NewHandler creates the MCP server. identity reports the agent answering,
// and may be nil.
func NewHandler(asker Asker, identity func() foundry.AgentIdentity, version string, log logr.Logger) *Handler {
	h := &Handler{
		asker:    asker,
		identity: identity,
		base:     log,
		log:      log.WithName("mcp"),
	}

	h.server = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	mcpsdk.AddTool(h.server, &mcpsdk.Tool{
		Name:        askAgentTool,
		Description: "Ask the Azure AI Foundry agent a question and return its complete answer",
	}, h.handleAskAgent)

	h.httpHandler = mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return h.server
	}, nil)
	return h
}

func (h *Handler) handleAskAgent(ctx context.Context, _ *mcpsdk.CallToolRequest, in AskAgentInput) (*mcpsdk.CallToolResult, AskAgentOutput, error) {
	log := h.log.WithValues("tool", askAgentTool)

	if in.Prompt == "" {
		return nil, AskAgentOutput{}, errors.New("prompt must not be empty")
	}

	answer, err := h.asker.InvokeBlocking(logr.NewContext(ctx, h.base.WithValues("tool", askAgentTool)), in.Prompt)
	if err != nil {
		log.Error(err, "Agent invocation failed")
		return nil, AskAgentOutput{}, err
	}

	out := AskAgentOutput{Answer: answer}
	if h.identity != nil {
		out.Agent = h.identity().String()
	}
	log.Info("Answered tool call", "answerLength", len(answer))
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: answer}},
	}, out, nil
}

// Server returns the underlying MCP server.
func (h *Handler) Server() *mcpsdk.Server {
	return h.server
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.httpHandler.ServeHTTP(w, r)
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects or ctx
// is cancelled.
func (h *Handler) ServeStdio(ctx context.Context) error {
	h.log.Info("Serving MCP over stdio")
	return h.server.Run(ctx, &mcpsdk.StdioTransport{})
}
