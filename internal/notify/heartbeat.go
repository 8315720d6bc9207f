package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/retry"
)

// Heartbeat pings a monitoring URL to signal a completed cycle.
type Heartbeat struct {
	url    string
	client *http.Client
	policy retry.Policy
	logger *slog.Logger
}

func NewHeartbeat(url string, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		url:    url,
		client: &http.Client{Timeout: timeout},
		policy: policy,
		logger: logger.With("component", "notify.Heartbeat"),
	}
}

// Ping GETs the heartbeat URL, retrying transient failures.
func (h *Heartbeat) Ping(ctx context.Context) error {
	_, err := retry.Do(ctx, h.policy, "heartbeat", h.logger, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
		if err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("failed to create heartbeat request: %w", err))
		}
		req.Header.Set("User-Agent", "entropybeacon/1.0")
		resp, err := h.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to ping heartbeat: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 400 {
			return struct{}{}, fmt.Errorf("heartbeat returned %d", resp.StatusCode)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}
	h.logger.Debug("heartbeat sent")
	return nil
}
