package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/entropybeacon/entropybeacon/internal/retry"
)

// Delivery headers. The signature is "sha256=" followed by the hex
// HMAC-SHA256 of "<timestamp>.<body>", sent only when a secret is set.
const (
	SignatureHeader = "X-EntropyBeacon-Signature"
	TimestampHeader = "X-EntropyBeacon-Timestamp"
	DeliveryHeader  = "X-EntropyBeacon-Delivery"
)

// Envelope is the webhook request body.
type Envelope struct {
	Delivery string `json:"delivery"`
	Event    string `json:"event"`
	Alert    Alert  `json:"alert"`
}

// WebhookSender delivers alerts to a generic webhook endpoint. Server
// errors are retried; client errors are not.
type WebhookSender struct {
	url    string
	secret []byte
	client *http.Client
	policy retry.Policy
	logger *slog.Logger
	now    func() time.Time
}

func NewWebhookSender(url, secret string, timeout time.Duration, policy retry.Policy, logger *slog.Logger) *WebhookSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSender{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
		policy: policy,
		logger: logger.With("component", "notify.WebhookSender"),
		now:    time.Now,
	}
}

func (w *WebhookSender) Name() string { return "webhook" }

func (w *WebhookSender) Send(ctx context.Context, alert Alert) error {
	env := Envelope{Delivery: ulid.Make().String(), Event: alert.Type, Alert: alert}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	ts := strconv.FormatInt(w.now().Unix(), 10)

	_, err = retry.Do(ctx, w.policy, "webhook "+env.Delivery, w.logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.deliver(ctx, env.Delivery, ts, body)
	})
	if err != nil {
		return err
	}
	w.logger.Debug("alert delivered", "delivery", env.Delivery, "event", env.Event)
	return nil
}

func (w *WebhookSender) deliver(ctx context.Context, delivery, ts string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "entropybeacon/1.0")
	req.Header.Set(DeliveryHeader, delivery)
	req.Header.Set(TimestampHeader, ts)
	if len(w.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(w.secret, ts, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("webhook rejected delivery (%d)", resp.StatusCode))
	}
	return nil
}

// Sign computes the signature header value for a delivery.
func Sign(secret []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header in constant time.
func VerifySignature(secret []byte, ts string, body []byte, header string) bool {
	return hmac.Equal([]byte(Sign(secret, ts, body)), []byte(header))
}
