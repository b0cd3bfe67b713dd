package relayclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/wavecastsh/wavecast/internal/cryptobox"
	"github.com/wavecastsh/wavecast/internal/protocol"
)

func TestBackoffDelaySequence(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 1500 * time.Millisecond},
		{3, 2250 * time.Millisecond},
	}
	for _, c := range cases {
		got := backoffDelay(c.attempt)
		if got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestBackoffDelayCapsAt30s(t *testing.T) {
	got := backoffDelay(30)
	if got != backoffCap {
		t.Fatalf("expected backoff to cap at %v, got %v", backoffCap, got)
	}
}

type fakeTransport struct {
	mu      sync.Mutex
	written []interface{}
}

func (f *fakeTransport) ReadFrame(ctx context.Context) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeTransport) WriteFrame(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, v)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) last() interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

type fakeTokenSource struct{ token string }

func (f fakeTokenSource) CurrentAuthToken() string { return f.token }

type fakeInjector struct{}

func (fakeInjector) Inject(ctx context.Context, req protocol.APIRequestFrame) protocol.APIResponseFrame {
	return protocol.APIResponseFrame{
		Type:      protocol.DataTypeAPIResponse,
		RequestID: req.RequestID,
		OK:        true,
		Status:    200,
		Data:      `{"ok":true}`,
	}
}

func newTestClient(t *testing.T) (*Client, *cryptobox.KeyPair) {
	t.Helper()
	hostKeys, err := cryptobox.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	c := New(Config{
		RelayURL: "wss://relay.example/ws",
		RoomID:   "room1",
		LocalURL: "http://localhost:8787",
		KeyPair:  *hostKeys,
		Injector: fakeInjector{},
		Tokens:   fakeTokenSource{token: "legacy-token"},
	})
	return c, hostKeys
}

func TestHandlePeerJoinedSendsWelcome(t *testing.T) {
	c, hostKeys := newTestClient(t)
	peerKeys, err := cryptobox.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	peerID := base64.RawURLEncoding.EncodeToString(peerKeys.Public[:])

	tr := &fakeTransport{}
	c.handlePeerJoined(tr, protocol.PeerJoinedFrame{Type: protocol.RelayTypePeerJoined, PeerID: peerID, DeviceName: "phone"})

	frame, ok := tr.last().(protocol.DataFrame)
	if !ok {
		t.Fatalf("expected a DataFrame to be written, got %#v", tr.last())
	}
	sealed, err := base64.RawStdEncoding.DecodeString(frame.Ciphertext)
	if err != nil {
		t.Fatalf("decoding ciphertext: %v", err)
	}
	plaintext, ok := cryptobox.Open(sealed, &hostKeys.Public, peerKeys)
	if !ok {
		t.Fatalf("peer could not open welcome frame")
	}
	var welcome protocol.WelcomeFrame
	if err := json.Unmarshal(plaintext, &welcome); err != nil {
		t.Fatalf("decoding welcome frame: %v", err)
	}
	if welcome.AuthToken != "legacy-token" {
		t.Fatalf("expected welcome frame to carry the auth token, got %+v", welcome)
	}
}

func TestHandleDataFrameRoundTripsAPIRequest(t *testing.T) {
	c, hostKeys := newTestClient(t)
	peerKeys, err := cryptobox.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	peerID := base64.RawURLEncoding.EncodeToString(peerKeys.Public[:])

	c.mu.Lock()
	c.peers[peerID] = peerKeys.Public
	c.mu.Unlock()

	reqFrame := protocol.APIRequestFrame{
		Type:      protocol.DataTypeAPIRequest,
		RequestID: "req001",
		Method:    "GET",
		URL:       "/api/health",
	}
	plaintext, err := json.Marshal(reqFrame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	sealed, err := cryptobox.Seal(plaintext, &hostKeys.Public, peerKeys)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tr := &fakeTransport{}
	c.handleDataFrame(context.Background(), tr, protocol.DataFrame{
		Type:       protocol.DataTypeData,
		PeerID:     peerID,
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})

	deadline := time.After(time.Second)
	for tr.last() == nil {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for api-response to be written")
		case <-time.After(time.Millisecond):
		}
	}

	frame := tr.last().(protocol.DataFrame)
	respSealed, err := base64.RawStdEncoding.DecodeString(frame.Ciphertext)
	if err != nil {
		t.Fatalf("decoding response ciphertext: %v", err)
	}
	respPlain, ok := cryptobox.Open(respSealed, &hostKeys.Public, peerKeys)
	if !ok {
		t.Fatalf("peer could not open api-response")
	}
	var resp protocol.APIResponseFrame
	if err := json.Unmarshal(respPlain, &resp); err != nil {
		t.Fatalf("decoding api-response: %v", err)
	}
	if resp.RequestID != "req001" || !resp.OK {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
