// Package collect fetches entropy source payloads. Every source is attempted
// independently under the same retry policy; the per-source outcomes are
// returned to the caller, which decides which failures abort the cycle.
package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Source kinds accepted in configuration.
const (
	KindHTTP      = "http"
	KindWebSocket = "websocket"
	KindTimestamp = "timestamp"
)

var ErrInvalidPayload = errors.New("collect: invalid payload")

// Source produces one JSON payload per cycle.
type Source interface {
	Name() string
	// Essential sources abort the cycle when they cannot be collected.
	Essential() bool
	Fetch(ctx context.Context) ([]byte, error)
}

// Spec describes a configured source.
type Spec struct {
	Name      string
	Kind      string
	URL       string
	Headers   map[string]string
	Subscribe string
	Extract   string
	Expect    string
	Essential bool
}

// Options are shared by every source built from a Spec.
type Options struct {
	Timeout time.Duration
	Client  *http.Client
	Now     func() time.Time
}

// New builds a source from spec, compiling its expectation up front.
func New(spec Spec, opts Options) (Source, error) {
	if spec.Name == "" {
		return nil, errors.New("source name is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var check *Expectation
	if spec.Expect != "" {
		var err error
		if check, err = CompileExpectation(spec.Expect); err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.Name, err)
		}
	}
	post := postProcessor{extract: spec.Extract, expect: check}

	switch spec.Kind {
	case KindHTTP, "":
		if spec.URL == "" {
			return nil, fmt.Errorf("source %s: url is required", spec.Name)
		}
		return &HTTPSource{spec: spec, client: opts.Client, post: post}, nil
	case KindWebSocket:
		if spec.URL == "" {
			return nil, fmt.Errorf("source %s: url is required", spec.Name)
		}
		return &WebSocketSource{spec: spec, timeout: opts.Timeout, post: post}, nil
	case KindTimestamp:
		return &TimestampSource{name: spec.Name, essential: spec.Essential, now: opts.Now}, nil
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", spec.Name, spec.Kind)
	}
}

// postProcessor narrows and checks a raw JSON document.
type postProcessor struct {
	extract string
	expect  *Expectation
}

func (p postProcessor) apply(raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrInvalidPayload)
	}
	out := raw
	if p.extract != "" {
		res := gjson.GetBytes(raw, p.extract)
		if !res.Exists() {
			return nil, fmt.Errorf("%w: path %q not found", ErrInvalidPayload, p.extract)
		}
		out = []byte(res.Raw)
	}
	if p.expect != nil {
		ok, err := p.expect.Check(out)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: expectation %q not met", ErrInvalidPayload, p.expect.Expression)
		}
	}
	return out, nil
}
