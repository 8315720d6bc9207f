package collect

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSource connects to a streaming feed, optionally sends a
// subscription message, and takes the first frame that yields a payload.
type WebSocketSource struct {
	spec    Spec
	timeout time.Duration
	post    postProcessor
}

// maxFrames bounds how many frames are read looking for a usable payload.
const maxFrames = 16

func (s *WebSocketSource) Name() string    { return s.spec.Name }
func (s *WebSocketSource) Essential() bool { return s.spec.Essential }

func (s *WebSocketSource) Fetch(ctx context.Context) ([]byte, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.timeout}
	header := http.Header{}
	for k, v := range s.spec.Headers {
		header.Set(k, v)
	}

	conn, resp, err := dialer.DialContext(ctx, s.spec.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.spec.Name, err)
	}
	defer func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	if s.spec.Subscribe != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(s.spec.Subscribe)); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", s.spec.Name, err)
		}
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var lastErr error
	for i := 0; i < maxFrames; i++ {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read from %s: %w", s.spec.Name, err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		payload, err := s.post.apply(msg)
		if err == nil {
			return payload, nil
		}
		// Acks and keepalives precede the data frame on most feeds.
		lastErr = err
	}
	return nil, fmt.Errorf("no usable frame from %s after %d messages: %w", s.spec.Name, maxFrames, lastErr)
}
