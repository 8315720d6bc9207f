// Package notify sends the beacon's outbound signals: the liveness
// heartbeat after a successful cycle and alerts when a cycle fails an
// integrity check.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Alert types.
const (
	AlertVerificationFailed = "verification_failed"
	AlertGenerationFailed   = "generation_failed"
)

// Alert is a notification about a failed cycle.
type Alert struct {
	Type      string            `json:"type"`
	Severity  string            `json:"severity"` // warning, critical
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Hash      string            `json:"hash,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sender is an alert delivery channel.
type Sender interface {
	Send(ctx context.Context, alert Alert) error
	Name() string
}

// Manager fans alerts out to every configured sender.
type Manager struct {
	senders []Sender
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(logger *slog.Logger, senders ...Sender) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		senders: senders,
		logger:  logger.With("component", "notify.Manager"),
		now:     time.Now,
	}
}

// Send delivers alert to every sender and waits for them, since the process
// usually exits right after. Delivery failures are logged and joined.
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	alert.Timestamp = m.now().UTC()

	var errs []error
	for _, s := range m.senders {
		if err := s.Send(ctx, alert); err != nil {
			m.logger.Error("failed to send alert",
				"sender", s.Name(),
				"type", alert.Type,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasSenders returns true if any alert channels are configured.
func (m *Manager) HasSenders() bool {
	return len(m.senders) > 0
}
