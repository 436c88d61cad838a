package foundry

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/conversations"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// CompletionService is the remote conversation + responses API the Adapter
// drives. Implementations must be safe for concurrent use.
type CompletionService interface {
	CreateConversation(ctx context.Context) (string, error)
	// Complete runs one non-streaming response and returns its output text.
	Complete(ctx context.Context, conversationID, prompt string, agent AgentReference) (string, error)
	// Stream runs one streaming response. Nothing is sent until the sequence
	// is ranged over; a transport failure ends it with a non-nil error.
	Stream(ctx context.Context, conversationID, prompt string, agent AgentReference) iter.Seq2[StreamEvent, error]
	// Close releases connections. The service must not be used afterwards.
	Close() error
}

// ResponsesService implements CompletionService on the project's
// OpenAI-compatible endpoint using the official OpenAI SDK.
type ResponsesService struct {
	client     openai.Client
	httpClient *http.Client
}

var _ CompletionService = (*ResponsesService)(nil)

// NewResponsesService creates a client for {projectEndpoint}/openai. The SDK's
// automatic retries are disabled: every failure reaches the caller as is.
func NewResponsesService(projectEndpoint, apiVersion string, httpClient *http.Client, opts ...option.RequestOption) *ResponsesService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(projectEndpoint, "/") + "/openai/"),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if apiVersion != "" {
		base = append(base, option.WithQuery("api-version", apiVersion))
	}
	return &ResponsesService{
		client:     openai.NewClient(append(base, opts...)...),
		httpClient: httpClient,
	}
}

// CreateConversation opens a new, empty conversation.
func (s *ResponsesService) CreateConversation(ctx context.Context) (string, error) {
	conv, err := s.client.Conversations.New(ctx, conversations.ConversationNewParams{})
	if err != nil {
		return "", err
	}
	if conv.ID == "" {
		return "", fmt.Errorf("conversation created without an id")
	}
	return conv.ID, nil
}

// Complete implements CompletionService.
func (s *ResponsesService) Complete(ctx context.Context, conversationID, prompt string, agent AgentReference) (string, error) {
	resp, err := s.client.Responses.New(ctx, newResponseParams(conversationID, prompt), withAgent(agent))
	if err != nil {
		return "", err
	}
	if err := responseFailure(resp); err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

// responseFailure reports a response the service finished with an error, the
// same way the streamed response.failed event is decoded.
func responseFailure(resp *responses.Response) error {
	if resp.Status != responses.ResponseStatusFailed && resp.Error.Code == "" && resp.Error.Message == "" {
		return nil
	}
	failure := StreamFailure{Code: string(resp.Error.Code), Message: resp.Error.Message}
	if failure.Message == "" {
		failure.Message = "response " + string(resp.Status)
	}
	return failure
}

// Stream implements CompletionService.
func (s *ResponsesService) Stream(ctx context.Context, conversationID, prompt string, agent AgentReference) iter.Seq2[StreamEvent, error] {
	return func(yield func(StreamEvent, error) bool) {
		stream := s.client.Responses.NewStreaming(ctx, newResponseParams(conversationID, prompt), withAgent(agent))
		defer stream.Close()

		for stream.Next() {
			ev := stream.Current()
			if !yield(DecodeStreamEvent(ev.Type, []byte(ev.RawJSON())), nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Close implements CompletionService.
func (s *ResponsesService) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func newResponseParams(conversationID, prompt string) responses.ResponseNewParams {
	return responses.ResponseNewParams{
		Conversation: responses.ResponseNewParamsConversationUnion{OfString: openai.String(conversationID)},
		Input:        responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
	}
}

// withAgent attaches the agent reference. The "agent" field is a Foundry
// extension the SDK has no typed parameter for.
func withAgent(agent AgentReference) option.RequestOption {
	return option.WithJSONSet("agent", agent)
}
