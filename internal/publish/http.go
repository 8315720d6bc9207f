package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/retry"
)

// HTTPStore PUTs values to {baseURL}/{key}?expiration_ttl={seconds}, the
// shape used by hosted KV namespaces.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

func NewHTTPStore(baseURL, token string, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		policy:  policy,
		logger:  logger.With("component", "publish.HTTPStore"),
	}
}

func (s *HTTPStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	u := s.baseURL + "/" + url.PathEscape(key)
	if secs := int64(ttl / time.Second); secs > 0 {
		u += "?expiration_ttl=" + strconv.FormatInt(secs, 10)
	}

	_, err := retry.Do(ctx, s.policy, "put "+key, s.logger, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(value))
		if err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "entropybeacon/1.0")
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to put %s: %w", key, err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return struct{}{}, retry.Permanent(fmt.Errorf("store rejected credentials (%d)", resp.StatusCode))
		case resp.StatusCode >= 400:
			return struct{}{}, fmt.Errorf("store returned %d", resp.StatusCode)
		}
		return struct{}{}, nil
	})
	return err
}
