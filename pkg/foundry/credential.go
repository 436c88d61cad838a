package foundry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenSource supplies bearer tokens for the Foundry APIs.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token, mostly useful in tests and local runs.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// azureTokenSource asks an Azure credential chain for tokens. The credential
// caches tokens itself, so every request may call it.
type azureTokenSource struct {
	cred   azcore.TokenCredential
	scopes []string
}

// NewAzureTokenSource creates a TokenSource backed by DefaultAzureCredential
// (environment, workload identity, managed identity, Azure CLI, ...).
func NewAzureTokenSource(scope string) (TokenSource, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return NewCredentialTokenSource(cred, scope), nil
}

// NewCredentialTokenSource adapts any azcore.TokenCredential.
func NewCredentialTokenSource(cred azcore.TokenCredential, scope string) TokenSource {
	return &azureTokenSource{cred: cred, scopes: []string{scope}}
}

func (s *azureTokenSource) Token(ctx context.Context) (string, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: s.scopes})
	if err != nil {
		return "", fmt.Errorf("failed to acquire token: %w", err)
	}
	return tok.Token, nil
}

// bearerTransport injects an Authorization header into every request.
type bearerTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.Token(req.Context())
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(req)
}

// NewHTTPClient creates the HTTP client shared by the directory and the
// completion service: bearer auth from tokens, outbound spans via otelhttp.
// No client timeout is set; callers bound work through their context.
func NewHTTPClient(tokens TokenSource) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	if tokens != nil {
		rt = &bearerTransport{base: rt, tokens: tokens}
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(rt),
	}
}

// tokenProbeTimeout bounds the startup credential check.
const tokenProbeTimeout = 30 * time.Second

// ProbeToken fetches one token so credential problems surface at startup
// rather than on the first request.
func ProbeToken(ctx context.Context, tokens TokenSource) error {
	ctx, cancel := context.WithTimeout(ctx, tokenProbeTimeout)
	defer cancel()
	if _, err := tokens.Token(ctx); err != nil {
		return err
	}
	return nil
}
