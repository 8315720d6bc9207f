package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
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

type mockSender struct {
	name string
	err  error
	sent []Alert
}

func (m *mockSender) Name() string { return m.name }

func (m *mockSender) Send(_ context.Context, alert Alert) error {
	m.sent = append(m.sent, alert)
	return m.err
}

func TestManager_Send(t *testing.T) {
	ok := &mockSender{name: "ok"}
	broken := &mockSender{name: "broken", err: errors.New("down")}
	m := NewManager(quiet, ok, broken)
	if !m.HasSenders() {
		t.Fatal("HasSenders() = false")
	}

	err := m.Send(context.Background(), Alert{Type: AlertVerificationFailed, Title: "bad"})
	if err == nil {
		t.Error("Send() should report the failing sender")
	}
	if len(ok.sent) != 1 || len(broken.sent) != 1 {
		t.Fatalf("every sender should be attempted: ok=%d broken=%d", len(ok.sent), len(broken.sent))
	}
	if ok.sent[0].Timestamp.IsZero() {
		t.Error("Send() should stamp the alert")
	}
}

func TestManager_NoSenders(t *testing.T) {
	m := NewManager(nil)
	if m.HasSenders() {
		t.Error("HasSenders() = true with no senders")
	}
	if err := m.Send(context.Background(), Alert{}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestWebhookSender_SignsPayload(t *testing.T) {
	var gotSig, gotTS, gotDelivery string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotTS = r.Header.Get(TimestampHeader)
		gotDelivery = r.Header.Get(DeliveryHeader)
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "shh", time.Second, retry.Policy{Attempts: 1}, quiet)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	alert := Alert{Type: AlertVerificationFailed, Severity: "critical", Title: "mismatch", Hash: "abc"}
	if err := s.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if gotTS != "1700000000" {
		t.Errorf("timestamp header = %q", gotTS)
	}
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write([]byte("1700000000." + string(gotBody)))
	if want := "sha256=" + hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
	if !VerifySignature([]byte("shh"), gotTS, gotBody, gotSig) {
		t.Error("VerifySignature() rejected a genuine delivery")
	}
	if VerifySignature([]byte("shh"), "1700000001", gotBody, gotSig) {
		t.Error("VerifySignature() accepted a replayed body with a new timestamp")
	}

	var env Envelope
	if err := json.Unmarshal(gotBody, &env); err != nil {
		t.Fatalf("body is not an envelope: %v", err)
	}
	if env.Event != AlertVerificationFailed || env.Alert.Hash != "abc" {
		t.Errorf("received envelope = %+v", env)
	}
	if env.Delivery == "" || env.Delivery != gotDelivery {
		t.Errorf("delivery id body=%q header=%q", env.Delivery, gotDelivery)
	}
}

func TestWebhookSender_UnsignedWithoutSecret(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL, "", time.Second, retry.Policy{Attempts: 1}, quiet).Send(context.Background(), Alert{}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if gotSig != "" {
		t.Errorf("signature header = %q, want none", gotSig)
	}
}

func TestWebhookSender_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "", time.Second, retry.Policy{Attempts: 3, Delay: time.Millisecond}, quiet)
	if err := s.Send(context.Background(), Alert{}); err == nil {
		t.Error("Send() should fail on 4xx")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestWebhookSender_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	deliveries := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries[r.Header.Get(DeliveryHeader)] = true
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "", time.Second, retry.Policy{Attempts: 3, Delay: time.Millisecond}, quiet)
	if err := s.Send(context.Background(), Alert{Type: AlertGenerationFailed}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
	if len(deliveries) != 1 {
		t.Errorf("retries should reuse the delivery id, got %d ids", len(deliveries))
	}
}

func TestHeartbeat_Ping(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	hb := NewHeartbeat(srv.URL, time.Second, retry.Policy{Attempts: 3, Delay: time.Millisecond}, quiet)
	if err := hb.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestHeartbeat_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hb := NewHeartbeat(srv.URL, time.Second, retry.Policy{Attempts: 2, Delay: time.Millisecond}, quiet)
	if err := hb.Ping(context.Background()); !errors.Is(err, retry.ErrTooManyRetries) {
		t.Errorf("Ping() error = %v, want ErrTooManyRetries", err)
	}
}
