package foundry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
	maxErrorBodyBytes = 4 << 10
)

// AgentVersion is one published version of an agent.
type AgentVersion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// Agent is the directory entry for a named agent.
type Agent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Versions struct {
		Latest *AgentVersion `json:"latest"`
	} `json:"versions"`
}

// Directory looks agents up in the Foundry project.
type Directory interface {
	GetVersion(ctx context.Context, name, version string) (*AgentVersion, error)
	GetAgent(ctx context.Context, name string) (*Agent, error)
}

// APIError is a non-2xx answer from the Foundry REST API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("foundry API returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("foundry API returned %d: %s", e.StatusCode, e.Message)
}

// DirectoryClient reads agents from the project's REST API. Authentication is
// the job of the supplied HTTP client (see NewHTTPClient).
type DirectoryClient struct {
	BaseURL    string
	APIVersion string
	Client     *http.Client
}

var _ Directory = (*DirectoryClient)(nil)

// NewDirectoryClient creates a DirectoryClient for a project endpoint.
// If client is nil, http.DefaultClient is used.
func NewDirectoryClient(projectEndpoint, apiVersion string, client *http.Client) *DirectoryClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &DirectoryClient{
		BaseURL:    strings.TrimRight(projectEndpoint, "/"),
		APIVersion: apiVersion,
		Client:     client,
	}
}

// GetVersion fetches a specific agent version.
func (c *DirectoryClient) GetVersion(ctx context.Context, name, version string) (*AgentVersion, error) {
	var out AgentVersion
	path := "/agents/" + url.PathEscape(name) + "/versions/" + url.PathEscape(version)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAgent fetches an agent with its latest version.
func (c *DirectoryClient) GetAgent(ctx context.Context, name string) (*Agent, error) {
	var out Agent
	if err := c.get(ctx, "/agents/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *DirectoryClient) get(ctx context.Context, path string, out any) error {
	u := c.BaseURL + path
	if c.APIVersion != "" {
		u += "?" + url.Values{"api-version": {c.APIVersion}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
