// Package tunnelclient implements the Tunnel Client (spec §4.8): the
// mobile-side persistent relay connection that joins a host's room, seals
// api-request frames end-to-end, and correlates api-response frames back
// to the caller. Grounded on internal/relay/agent.go's reconnect shape
// (same backoff as internal/relayclient, per spec §4.7) and
// internal/session/session.go's pendingRequests correlator idiom.
package tunnelclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wavecastsh/wavecast/internal/cryptobox"
	"github.com/wavecastsh/wavecast/internal/protocol"
)

func newBodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

const (
	backoffInitial    = 1 * time.Second
	backoffMultiplier = 1.5
	backoffCap        = 30 * time.Second
	maxAttempts       = 10

	keepaliveInterval = 15 * time.Second
)

// State is the Tunnel Client's connection lifecycle, per spec §4.8.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateRequiresPassword
	StateError
)

// transport abstracts the relay socket for testability, mirroring
// internal/relayclient's split.
type transport interface {
	ReadFrame(ctx context.Context) (json.RawMessage, error)
	WriteFrame(v interface{}) error
	Close() error
}

// Config bundles the Client's dependencies.
type Config struct {
	RelayURL     string
	RoomID       string
	DeviceName   string
	UserAgent    string
	PasswordHash string // empty for an unprotected room

	// RemoteOnly resolves spec §9's Open Question: a statically hosted
	// remote client has no LAN path to the host at all, so it must skip
	// the direct-HTTP fallback entirely and always tunnel.
	RemoteOnly bool

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// TunneledResult is the outcome of an APIRequest call.
type TunneledResult struct {
	OK     bool
	Status int
	Data   string
}

// Client is the Tunnel Client (Mobile).
type Client struct {
	cfg Config
	log *slog.Logger

	dial func(ctx context.Context, url string) (transport, error)

	ephemeral cryptobox.KeyPair

	mu         sync.RWMutex
	state      State
	hostPublic [cryptobox.KeySize]byte
	localURL   string
	authToken  string
	transport  transport

	correlator *correlator
}

// New builds a Client with a freshly generated ephemeral keypair.
func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	keys, err := cryptobox.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral keypair: %w", err)
	}

	return &Client{
		cfg:        cfg,
		log:        logger,
		dial:       dialWebSocket,
		ephemeral:  *keys,
		state:      StateDisconnected,
		correlator: newCorrelator(),
	}, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run owns the reconnect loop, identical in shape to relayclient.Client.Run.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		c.setState(StateConnecting)
		err := c.runOnce(ctx, &attempt)
		c.correlator.cancelAll()

		if err == nil {
			c.setState(StateDisconnected)
			return nil
		}
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		c.setState(StateError)
		attempt++
		if attempt >= maxAttempts {
			return fmt.Errorf("tunnel client: giving up after %d attempts: %w", attempt, err)
		}

		wait := backoffDelay(attempt)
		c.log.Warn("tunnel connection lost, reconnecting", "attempt", attempt, "wait", wait, "error", err)

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return nil
		case <-time.After(wait):
		}
	}
}

// Reconnect(resetAttempts) mirrors the JS client's page-visibility reset
// hook. There is no visibility concept in a headless Go binary, so this is
// a no-op placeholder that preserves the method signature for a future
// JS/WASM build target, per spec §9's preference for plain method calls
// over inventing an API that can't exist here.
func (c *Client) Reconnect(resetAttempts bool) {}

func backoffDelay(attempt int) time.Duration {
	d := float64(backoffInitial)
	for i := 1; i < attempt; i++ {
		d *= backoffMultiplier
	}
	capped := time.Duration(d)
	if capped > backoffCap {
		capped = backoffCap
	}
	return capped
}

func (c *Client) runOnce(ctx context.Context, attempt *int) error {
	t, err := c.dial(ctx, c.cfg.RelayURL)
	if err != nil {
		return fmt.Errorf("dialing relay: %w", err)
	}
	defer t.Close()

	if err := t.WriteFrame(protocol.JoinFrame{
		Type:               protocol.RelayTypeJoin,
		RoomID:             c.cfg.RoomID,
		EphemeralPublicKey: base64.RawURLEncoding.EncodeToString(c.ephemeral.Public[:]),
		DeviceName:         c.cfg.DeviceName,
		UserAgent:          c.cfg.UserAgent,
		PasswordHash:       c.cfg.PasswordHash,
	}); err != nil {
		return fmt.Errorf("sending join: %w", err)
	}

	raw, err := t.ReadFrame(ctx)
	if err != nil {
		return fmt.Errorf("awaiting joined: %w", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding join response: %w", err)
	}
	switch env.Type {
	case protocol.RelayTypeAuthRequired:
		c.setState(StateRequiresPassword)
		return fmt.Errorf("room requires a password")
	case protocol.RelayTypeError:
		var ef protocol.ErrorFrame
		_ = json.Unmarshal(raw, &ef)
		return fmt.Errorf("relay rejected join: %s", ef.Message)
	case protocol.RelayTypeJoined:
		var jf protocol.JoinedFrame
		if err := json.Unmarshal(raw, &jf); err != nil {
			return fmt.Errorf("decoding joined frame: %w", err)
		}
		pub, err := decodeKey(jf.HostPublicKey)
		if err != nil {
			return fmt.Errorf("decoding host public key: %w", err)
		}
		c.mu.Lock()
		c.hostPublic = pub
		c.transport = t
		c.mu.Unlock()
	default:
		return fmt.Errorf("unexpected frame %q while awaiting joined", env.Type)
	}

	*attempt = 0
	c.setState(StateConnected)
	c.log.Info("joined relay room", "room_id", c.cfg.RoomID)

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(t, stopPing)

	for {
		raw, err := t.ReadFrame(ctx)
		if err != nil {
			return fmt.Errorf("reading relay frame: %w", err)
		}
		c.handleDataFrame(raw)
	}
}

func (c *Client) pingLoop(t transport, stop <-chan struct{}) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := t.WriteFrame(protocol.PingFrame{Type: protocol.RelayTypePing}); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleDataFrame(raw json.RawMessage) {
	var f protocol.DataFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}
	sealed, err := base64.RawStdEncoding.DecodeString(f.Ciphertext)
	if err != nil {
		return
	}

	c.mu.RLock()
	hostPub := c.hostPublic
	c.mu.RUnlock()

	plaintext, ok := cryptobox.Open(sealed, &hostPub, &c.ephemeral)
	if !ok {
		// Per spec §4.8, decryption failure silently drops the frame.
		return
	}

	var env protocol.Envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return
	}

	switch env.Type {
	case protocol.DataTypeWelcome:
		var w protocol.WelcomeFrame
		if err := json.Unmarshal(plaintext, &w); err != nil {
			return
		}
		c.mu.Lock()
		c.authToken = w.AuthToken
		c.localURL = w.LocalURL
		c.mu.Unlock()

	case protocol.DataTypeAPIResponse:
		var resp protocol.APIResponseFrame
		if err := json.Unmarshal(plaintext, &resp); err != nil {
			return
		}
		c.correlator.resolve(resp.RequestID, resp)

	case protocol.DataTypeCommandAck:
		// Command acks are fire-and-forget from the mobile client's
		// perspective; nothing in this package correlates them today.
	}
}

// APIRequest tunnels an HTTP-style call to the host. Unless RemoteOnly is
// set, it first attempts a direct call to the host's advertised LocalURL
// (LAN fast path) and only falls back to the relay tunnel if that fails or
// no LocalURL is known yet.
func (c *Client) APIRequest(ctx context.Context, method, path string, body []byte) (TunneledResult, error) {
	if !c.cfg.RemoteOnly {
		if res, ok := c.tryDirect(ctx, method, path, body); ok {
			return res, nil
		}
	}
	return c.tunneledRequest(ctx, method, path, body)
}

func (c *Client) tryDirect(ctx context.Context, method, path string, body []byte) (TunneledResult, bool) {
	c.mu.RLock()
	localURL, authToken := c.localURL, c.authToken
	c.mu.RUnlock()
	if localURL == "" {
		return TunneledResult{}, false
	}

	req, err := http.NewRequestWithContext(ctx, method, localURL+path, newBodyReader(body))
	if err != nil {
		return TunneledResult{}, false
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return TunneledResult{}, false
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return TunneledResult{}, false
	}
	return TunneledResult{OK: resp.StatusCode < 300, Status: resp.StatusCode, Data: string(data)}, true
}

func (c *Client) tunneledRequest(ctx context.Context, method, path string, body []byte) (TunneledResult, error) {
	c.mu.RLock()
	t := c.transport
	authToken := c.authToken
	c.mu.RUnlock()
	if t == nil {
		return TunneledResult{OK: false, Status: http.StatusServiceUnavailable}, nil
	}

	requestID := newRequestID()
	req := protocol.APIRequestFrame{
		Type:      protocol.DataTypeAPIRequest,
		RequestID: requestID,
		Method:    method,
		URL:       path,
		Body:      string(body),
		AuthToken: authToken,
	}

	plaintext, err := json.Marshal(req)
	if err != nil {
		return TunneledResult{}, fmt.Errorf("encoding request: %w", err)
	}

	c.mu.RLock()
	hostPub := c.hostPublic
	c.mu.RUnlock()

	sealed, err := cryptobox.Seal(plaintext, &hostPub, &c.ephemeral)
	if err != nil {
		return TunneledResult{}, fmt.Errorf("sealing request: %w", err)
	}

	ch := c.correlator.register(requestID)

	if err := t.WriteFrame(protocol.DataFrame{
		Type:       protocol.DataTypeData,
		PeerID:     base64.RawURLEncoding.EncodeToString(c.ephemeral.Public[:]),
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	}); err != nil {
		return TunneledResult{}, fmt.Errorf("sending tunneled request: %w", err)
	}

	select {
	case resp := <-ch:
		return TunneledResult{OK: resp.OK, Status: resp.Status, Data: resp.Data}, nil
	case <-ctx.Done():
		return TunneledResult{}, ctx.Err()
	}
}

// newRequestID mints a 12-hex-character request id from a fresh UUID.
// The tunnel client does not cap the number of concurrent in-flight
// requests; ids only need to be unique within the correlator's map, which
// belongs to one client.
func newRequestID() string {
	raw := uuid.New()
	hex := fmt.Sprintf("%x", raw[:])
	return hex[:12]
}

func decodeKey(s string) ([cryptobox.KeySize]byte, error) {
	var out [cryptobox.KeySize]byte
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != cryptobox.KeySize {
		return out, fmt.Errorf("expected %d-byte key, got %d", cryptobox.KeySize, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
