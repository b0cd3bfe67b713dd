package tunnelclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wavecastsh/wavecast/internal/cryptobox"
	"github.com/wavecastsh/wavecast/internal/protocol"
)

func TestCorrelatorResolveDeliversResponse(t *testing.T) {
	c := newCorrelator()
	ch := c.register("req1")
	c.resolve("req1", protocol.APIResponseFrame{RequestID: "req1", OK: true, Status: 200})

	select {
	case resp := <-ch:
		if !resp.OK || resp.Status != 200 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for correlator to deliver")
	}
}

func TestCorrelatorCancelAllDeliversShutdown(t *testing.T) {
	c := newCorrelator()
	ch := c.register("req1")
	c.cancelAll()

	select {
	case resp := <-ch:
		if resp.OK || resp.Status != 503 {
			t.Fatalf("expected a 503 shutdown response, got %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancelAll to deliver")
	}
}

func TestBackoffDelaySequence(t *testing.T) {
	if got := backoffDelay(1); got != backoffInitial {
		t.Fatalf("backoffDelay(1) = %v, want %v", got, backoffInitial)
	}
	if got := backoffDelay(30); got != backoffCap {
		t.Fatalf("backoffDelay(30) = %v, want %v", got, backoffCap)
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{RelayURL: "wss://relay.example/ws", RoomID: "room1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestHandleDataFrameStoresWelcome(t *testing.T) {
	c := newTestClient(t)
	hostKeys, err := cryptobox.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	c.mu.Lock()
	c.hostPublic = hostKeys.Public
	c.mu.Unlock()

	welcome := protocol.WelcomeFrame{Type: protocol.DataTypeWelcome, AuthToken: "tok123", LocalURL: "http://192.168.1.5:8787"}
	plaintext, err := json.Marshal(welcome)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	sealed, err := cryptobox.Seal(plaintext, &c.ephemeral.Public, hostKeys)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	raw, err := json.Marshal(protocol.DataFrame{
		Type:       protocol.DataTypeData,
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		t.Fatalf("marshal data frame: %v", err)
	}
	c.handleDataFrame(raw)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "tok123" || c.localURL != "http://192.168.1.5:8787" {
		t.Fatalf("expected welcome frame fields to be stored, got token=%q url=%q", c.authToken, c.localURL)
	}
}

func TestAPIRequestPrefersDirectFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.mu.Lock()
	c.localURL = srv.URL
	c.mu.Unlock()

	res, err := c.APIRequest(context.Background(), http.MethodGet, "/api/health", nil)
	if err != nil {
		t.Fatalf("APIRequest: %v", err)
	}
	if !res.OK || res.Status != 200 {
		t.Fatalf("expected direct request to succeed, got %+v", res)
	}
}

func TestAPIRequestRemoteOnlySkipsDirectFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{RelayURL: "wss://relay.example/ws", RoomID: "room1", RemoteOnly: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.mu.Lock()
	c.localURL = srv.URL
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := c.APIRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		t.Fatalf("expected a synthetic response rather than an error, got err: %v", err)
	}
	if res.OK || res.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected RemoteOnly client with no transport to synthesize a 503, got %+v", res)
	}
}
