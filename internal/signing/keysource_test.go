package signing

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/retry"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHTTPKeySource_Fetch(t *testing.T) {
	key := testKey(t, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"key":%q}`, PublicKeyHex(key))
	}))
	defer srv.Close()

	src := NewHTTPKeySource(srv.URL, time.Second, retry.Policy{Attempts: 2, Delay: time.Millisecond}, quiet)
	pub, err := src.PublicKey(context.Background())
	if err != nil {
		t.Fatalf("PublicKey() error: %v", err)
	}
	if !pub.Equal(key.Public()) {
		t.Error("fetched key does not match served key")
	}
}

func TestHTTPKeySource_RetriesThenSucceeds(t *testing.T) {
	key := testKey(t, 5)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, `{"key":%q}`, PublicKeyHex(key))
	}))
	defer srv.Close()

	src := NewHTTPKeySource(srv.URL, time.Second, retry.Policy{Attempts: 5, Delay: time.Millisecond}, quiet)
	if _, err := src.PublicKey(context.Background()); err != nil {
		t.Fatalf("PublicKey() error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHTTPKeySource_EmptyKeyExhausts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"key":""}`)
	}))
	defer srv.Close()

	src := NewHTTPKeySource(srv.URL, time.Second, retry.Policy{Attempts: 3, Delay: time.Millisecond}, quiet)
	_, err := src.PublicKey(context.Background())
	if !errors.Is(err, retry.ErrTooManyRetries) {
		t.Fatalf("error = %v, want ErrTooManyRetries", err)
	}
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, should wrap ErrInvalidKey", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestStaticKey(t *testing.T) {
	key := testKey(t, 6)
	pub, err := StaticKey(key.Public().(ed25519.PublicKey)).PublicKey(context.Background())
	if err != nil {
		t.Fatalf("PublicKey() error: %v", err)
	}
	if !pub.Equal(key.Public()) {
		t.Error("static key mismatch")
	}
	if _, err := StaticKey(nil).PublicKey(context.Background()); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty static key error = %v, want ErrInvalidKey", err)
	}
}
