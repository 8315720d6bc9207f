package collect

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/entropybeacon/entropybeacon/internal/retry"
)

// maxPayloadBytes bounds a single payload; sources serve small JSON blobs.
const maxPayloadBytes = 1 << 20

// HTTPSource GETs a JSON document.
type HTTPSource struct {
	spec   Spec
	client *http.Client
	post   postProcessor
}

func (s *HTTPSource) Name() string    { return s.spec.Name }
func (s *HTTPSource) Essential() bool { return s.spec.Essential }

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.spec.URL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "entropybeacon/1.0")
	for k, v := range s.spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.spec.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned %d", s.spec.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", s.spec.Name, err)
	}
	return s.post.apply(body)
}
