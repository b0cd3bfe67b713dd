// Package relayclient implements the Relay Client (spec §4.7): the host's
// single outbound WebSocket connection to the relay, room registration,
// peer lifecycle, and inbound api-request/playback-command demultiplexing.
// Grounded on internal/relay/agent.go's RunAgent/runAgentOnce reconnect
// shape and internal/connection/websocket.go's read/write split, with the
// backoff parameters taken from spec §4.7 (1s initial, x1.5, 30s cap, 10
// attempt ceiling) rather than the teacher's uncapped-doubling formula — a
// deliberate, documented deviation (see DESIGN.md).
package relayclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wavecastsh/wavecast/internal/capability"
	"github.com/wavecastsh/wavecast/internal/cryptobox"
	"github.com/wavecastsh/wavecast/internal/protocol"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMultiplier = 1.5
	backoffCap        = 30 * time.Second
	maxAttempts       = 10

	maxInFlight = 64
)

// RequestInjector routes a tunneled api-request frame into the Front
// Door's handler chain, in-process. Implemented by *frontdoor.Door.
type RequestInjector interface {
	Inject(ctx context.Context, req protocol.APIRequestFrame) protocol.APIResponseFrame
}

// AuthTokenSource supplies the token a newly joined peer should use for
// subsequent tunneled requests. Implemented by *frontdoor.Door.
type AuthTokenSource interface {
	CurrentAuthToken() string
}

// transport abstracts the underlying relay socket so the frame-handling
// logic below can be unit-tested without a live connection.
type transport interface {
	ReadFrame(ctx context.Context) (json.RawMessage, error)
	WriteFrame(v interface{}) error
	Close() error
}

// Config bundles the Client's dependencies.
type Config struct {
	RelayURL     string
	RoomID       string
	ServerName   string
	PasswordHash string // empty for an unprotected room
	LocalURL     string
	KeyPair      cryptobox.KeyPair
	Injector     RequestInjector
	Tokens       AuthTokenSource
	Playback     capability.Playback // optional, nil if no playback orchestrator wired
	Logger       *slog.Logger
}

// Client is the Relay Client (Host).
type Client struct {
	cfg Config
	log *slog.Logger

	dial func(ctx context.Context, url string) (transport, error)

	mu    sync.Mutex
	peers map[string][KeySize]byte // peer_id (base64 ephemeral pubkey) -> decoded pubkey
	inFlight chan struct{}
}

const KeySize = cryptobox.KeySize

// New builds a Client that dials with dialWebSocket from transport_ws.go;
// this constructor is what production code calls.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		log:      logger,
		dial:     dialWebSocket,
		peers:    make(map[string][KeySize]byte),
		inFlight: make(chan struct{}, maxInFlight),
	}
}

// Run owns the reconnect loop: dial, register, demux inbound frames until
// disconnected, then back off and retry, up to maxAttempts consecutive
// failures. Returns nil on graceful shutdown (ctx cancellation), or an
// error once the attempt ceiling is reached.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := c.runOnce(ctx, &attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		attempt++
		if attempt >= maxAttempts {
			return fmt.Errorf("relay client: giving up after %d attempts: %w", attempt, err)
		}

		wait := backoffDelay(attempt)
		c.log.Warn("relay connection lost, reconnecting", "attempt", attempt, "wait", wait, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// backoffDelay computes the delay before attempt N (1-indexed), per spec
// §4.7: initial 1s, multiplier 1.5, capped at 30s.
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

	if err := t.WriteFrame(protocol.RegisterFrame{
		Type:         protocol.RelayTypeRegister,
		RoomID:       c.cfg.RoomID,
		PasswordHash: c.cfg.PasswordHash,
		ServerName:   c.cfg.ServerName,
	}); err != nil {
		return fmt.Errorf("sending register: %w", err)
	}

	raw, err := t.ReadFrame(ctx)
	if err != nil {
		return fmt.Errorf("awaiting registered: %w", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding registered frame: %w", err)
	}
	if env.Type == protocol.RelayTypeError {
		var ef protocol.ErrorFrame
		_ = json.Unmarshal(raw, &ef)
		return fmt.Errorf("relay rejected registration: %s", ef.Message)
	}
	if env.Type != protocol.RelayTypeRegistered {
		return fmt.Errorf("unexpected frame %q while awaiting registered", env.Type)
	}

	// Reset the attempt counter now that a registration has succeeded, per
	// spec's general reconnect-with-backoff expectation that a live
	// connection isn't penalized by earlier failed attempts.
	*attempt = 0
	c.log.Info("registered with relay", "room_id", c.cfg.RoomID)

	for {
		raw, err := t.ReadFrame(ctx)
		if err != nil {
			return fmt.Errorf("reading relay frame: %w", err)
		}
		c.handleFrame(ctx, t, raw)
	}
}

func (c *Client) handleFrame(ctx context.Context, t transport, raw json.RawMessage) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("discarding malformed relay frame", "error", err)
		return
	}

	switch env.Type {
	case protocol.RelayTypePeerJoined:
		var f protocol.PeerJoinedFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return
		}
		c.handlePeerJoined(t, f)

	case protocol.RelayTypePeerLeft:
		var f protocol.PeerLeftFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return
		}
		c.mu.Lock()
		delete(c.peers, f.PeerID)
		c.mu.Unlock()

	case protocol.DataTypeData:
		var f protocol.DataFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return
		}
		c.handleDataFrame(ctx, t, f)

	case protocol.RelayTypeError:
		var f protocol.ErrorFrame
		_ = json.Unmarshal(raw, &f)
		c.log.Warn("relay reported error", "message", f.Message)

	default:
		c.log.Debug("ignoring unhandled relay frame", "type", env.Type)
	}
}

func (c *Client) handlePeerJoined(t transport, f protocol.PeerJoinedFrame) {
	pub, err := decodePeerID(f.PeerID)
	if err != nil {
		c.log.Warn("peer_joined with malformed peer id", "peer_id", f.PeerID, "error", err)
		return
	}
	c.mu.Lock()
	c.peers[f.PeerID] = pub
	c.mu.Unlock()

	welcome := protocol.WelcomeFrame{
		Type:      protocol.DataTypeWelcome,
		AuthToken: c.cfg.Tokens.CurrentAuthToken(),
		LocalURL:  c.cfg.LocalURL,
	}
	if err := c.sendSealed(t, f.PeerID, welcome); err != nil {
		c.log.Warn("failed to send welcome frame", "peer_id", f.PeerID, "error", err)
	}
}

// sendSealed marshals, seals, and sends v to peerID as an opaque data frame.
func (c *Client) sendSealed(t transport, peerID string, v interface{}) error {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding sealed payload: %w", err)
	}

	c.mu.Lock()
	pub, ok := c.peers[peerID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown peer %q", peerID)
	}

	sealed, err := cryptobox.Seal(plaintext, &pub, &c.cfg.KeyPair)
	if err != nil {
		return fmt.Errorf("sealing payload: %w", err)
	}

	return t.WriteFrame(protocol.DataFrame{
		Type:       protocol.DataTypeData,
		PeerID:     peerID,
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})
}

func (c *Client) handleDataFrame(ctx context.Context, t transport, f protocol.DataFrame) {
	c.mu.Lock()
	pub, ok := c.peers[f.PeerID]
	c.mu.Unlock()
	if !ok {
		c.log.Warn("data frame from unknown peer, dropping", "peer_id", f.PeerID)
		return
	}

	sealed, err := base64.RawStdEncoding.DecodeString(f.Ciphertext)
	if err != nil {
		c.log.Warn("data frame has malformed ciphertext, dropping", "peer_id", f.PeerID)
		return
	}

	plaintext, ok := cryptobox.Open(sealed, &pub, &c.cfg.KeyPair)
	if !ok {
		// Per spec §4.8, decryption failure silently drops the frame.
		return
	}

	var env protocol.Envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return
	}

	switch env.Type {
	case protocol.DataTypeAPIRequest:
		var req protocol.APIRequestFrame
		if err := json.Unmarshal(plaintext, &req); err != nil {
			return
		}
		c.handleAPIRequest(ctx, t, f.PeerID, req)

	case protocol.DataTypePlaybackCommand:
		var cmd protocol.PlaybackCommandFrame
		if err := json.Unmarshal(plaintext, &cmd); err != nil {
			return
		}
		c.handlePlaybackCommand(ctx, t, f.PeerID, cmd)
	}
}

func (c *Client) handleAPIRequest(ctx context.Context, t transport, peerID string, req protocol.APIRequestFrame) {
	select {
	case c.inFlight <- struct{}{}:
	default:
		_ = c.sendSealed(t, peerID, protocol.APIResponseFrame{
			Type:      protocol.DataTypeAPIResponse,
			RequestID: req.RequestID,
			OK:        false,
			Status:    429,
			Data:      `{"error":"too-many-in-flight"}`,
		})
		return
	}

	go func() {
		defer func() { <-c.inFlight }()
		resp := c.cfg.Injector.Inject(ctx, req)
		if err := c.sendSealed(t, peerID, resp); err != nil {
			c.log.Warn("failed to send api-response", "peer_id", peerID, "error", err)
		}
	}()
}

func (c *Client) handlePlaybackCommand(ctx context.Context, t transport, peerID string, cmd protocol.PlaybackCommandFrame) {
	ack := protocol.CommandAckFrame{
		Type:      protocol.DataTypeCommandAck,
		RequestID: cmd.RequestID,
		Success:   true,
	}

	if c.cfg.Playback == nil {
		ack.Success = false
		ack.Error = "no playback orchestrator wired"
	} else {
		var err error
		switch cmd.Command {
		case "play":
			trackID, _ := cmd.Args["trackId"].(string)
			err = c.cfg.Playback.Play(ctx, trackID)
		case "pause":
			err = c.cfg.Playback.Pause(ctx)
		case "next":
			err = c.cfg.Playback.Next(ctx)
		case "previous":
			err = c.cfg.Playback.Previous(ctx)
		default:
			err = fmt.Errorf("unknown command %q", cmd.Command)
		}
		if err != nil {
			ack.Success = false
			ack.Error = err.Error()
		}
	}

	if err := c.sendSealed(t, peerID, ack); err != nil {
		c.log.Warn("failed to send command-ack", "peer_id", peerID, "error", err)
	}
}

func decodePeerID(peerID string) ([KeySize]byte, error) {
	var out [KeySize]byte
	raw, err := base64.RawURLEncoding.DecodeString(peerID)
	if err != nil {
		return out, err
	}
	if len(raw) != KeySize {
		return out, fmt.Errorf("expected %d-byte key, got %d", KeySize, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
