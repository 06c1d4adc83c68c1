package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

// CredentialResolver yields the access credential for a subscription tier.
type CredentialResolver interface {
	Resolve(ctx context.Context, tier quiz.Tier) (string, error)
}

// PrimaryConfig holds connection details for the self-hosted inference gateway.
type PrimaryConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Primary calls the inference gateway with a tier-specific API key.
type Primary struct {
	httpClient  *http.Client
	config      PrimaryConfig
	credentials CredentialResolver
}

var _ quiz.Provider = (*Primary)(nil)

func NewPrimary(cfg PrimaryConfig, credentials CredentialResolver, httpClient *http.Client) *Primary {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Primary{httpClient: httpClient, config: cfg, credentials: credentials}
}

func (p *Primary) Name() string { return "primary" }

type primaryRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type primaryResponse struct {
	Response string `json:"response"`
}

func (p *Primary) Complete(ctx context.Context, req quiz.ProviderRequest) (string, error) {
	if p.config.URL == "" {
		return "", fmt.Errorf("primary endpoint not configured")
	}
	apiKey, err := p.credentials.Resolve(ctx, req.Tier)
	if err != nil {
		return "", fmt.Errorf("resolve credential: %w", err)
	}

	body, err := json.Marshal(primaryRequest{Model: p.config.Model, Prompt: req.Prompt, Stream: false})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("primary returned status %d", resp.StatusCode)
	}

	var payload primaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode primary payload: %w", err)
	}
	if payload.Response == "" {
		return "", fmt.Errorf("primary returned empty response")
	}
	return payload.Response, nil
}
