package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/retry"
)

// KeySource supplies the public key records are verified against.
type KeySource interface {
	PublicKey(ctx context.Context) (ed25519.PublicKey, error)
}

// StaticKey is a KeySource that always returns the same key.
type StaticKey ed25519.PublicKey

func (k StaticKey) PublicKey(context.Context) (ed25519.PublicKey, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("%w: empty static key", ErrInvalidKey)
	}
	return ed25519.PublicKey(k), nil
}

// keyResponse is the body served by the public key endpoint.
type keyResponse struct {
	Key string `json:"key"`
}

// HTTPKeySource fetches the public key from an endpoint returning
// {"key": "<hex>"}, retrying transient failures.
type HTTPKeySource struct {
	url    string
	client *http.Client
	policy retry.Policy
	logger *slog.Logger
}

// NewHTTPKeySource creates a key source for url. Each attempt is bounded by
// timeout.
func NewHTTPKeySource(url string, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *HTTPKeySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPKeySource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		policy: policy,
		logger: logger.With("component", "signing.HTTPKeySource"),
	}
}

// PublicKey fetches and parses the key. An empty or malformed key is
// retried like a network failure, since the endpoint may be mid-deploy.
func (s *HTTPKeySource) PublicKey(ctx context.Context) (ed25519.PublicKey, error) {
	key, err := retry.Do(ctx, s.policy, "fetch public key", s.logger, s.fetch)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched public key", "url", s.url)
	return key, nil
}

func (s *HTTPKeySource) fetch(ctx context.Context) (ed25519.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create key request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "entropybeacon/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch public key: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("public key endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read public key response: %w", err)
	}
	var kr keyResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, fmt.Errorf("failed to decode public key response: %w", err)
	}
	if kr.Key == "" {
		return nil, fmt.Errorf("%w: endpoint returned an empty key", ErrInvalidKey)
	}
	return ParsePublicKey(kr.Key)
}
