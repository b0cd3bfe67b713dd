// Package pairing implements the Pairing Coordinator (spec §4.4): a
// current stable WORD-WORD-NN code tied to the relay room, one-time opaque
// codes for the admin-approval flow, and a channel-based approval API
// (replacing the source's callback-heavy design, per spec §9).
//
// QR rendering is grounded on internal/client/commands.go's printQR
// (github.com/skip2/go-qrcode); code generation follows
// internal/credential's crypto/rand idiom.
package pairing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wavecastsh/wavecast/internal/credential"
	"github.com/wavecastsh/wavecast/internal/device"
)

const (
	defaultCodeTTL       = 5 * time.Minute
	defaultApprovalTimeout = 60 * time.Second
)

// CurrentCodeInfo is the shape returned by CurrentCode().
type CurrentCodeInfo struct {
	Code      string    `json:"code"`
	QRPayload string    `json:"qrPayload,omitempty"` // base64 PNG
	LocalURL  string    `json:"localUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConsumeResult is the shape returned by Consume().
type ConsumeResult struct {
	Success          bool   `json:"success"`
	DeviceToken      string `json:"deviceToken,omitempty"`
	DeviceID         string `json:"deviceId,omitempty"`
	RequiresApproval bool   `json:"requiresApproval,omitempty"`
	Conflict         bool   `json:"-"` // true when code was already consumed, distinct from expired/invalid per spec §7
	Error            string `json:"error,omitempty"`
}

// PendingRequest describes an outstanding approval-gated pairing attempt.
type PendingRequest struct {
	RequestID string    `json:"requestId"`
	Code      string     `json:"code"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

type codeEntry struct {
	code      string
	createdAt time.Time
	expiresAt time.Time
	consumed  bool
}

type pendingApproval struct {
	requestID string
	userAgent string
	code      string
	createdAt time.Time
	resultCh  chan ConsumeResult
}

// Coordinator is the Pairing Coordinator.
type Coordinator struct {
	mu              sync.Mutex
	current         *codeEntry
	oneTime         map[string]*codeEntry
	pending         map[string]*pendingApproval
	requireApproval bool

	registry *device.Registry
	roomID   func() string
	localURL string
}

// New builds a Coordinator. roomID is called lazily so it always reflects
// the Identity Store's current relay room id.
func New(registry *device.Registry, roomID func() string, localURL string) *Coordinator {
	c := &Coordinator{
		oneTime:  make(map[string]*codeEntry),
		pending:  make(map[string]*pendingApproval),
		registry: registry,
		roomID:   roomID,
		localURL: localURL,
	}
	c.current = c.newStableCode()
	return c
}

func (c *Coordinator) newStableCode() *codeEntry {
	now := time.Now().UTC()
	return &codeEntry{
		code:      credential.GeneratePassphrase(), // adjective-noun-NN, spec's WORD-WORD-NN shape
		createdAt: now,
		expiresAt: now.Add(defaultCodeTTL),
	}
}

// CurrentCode returns the active stable code, QR payload, and local URL.
// If the previous code expired it is regenerated first, satisfying "a
// pairing code per server session (or per explicit refresh)".
func (c *Coordinator) CurrentCode() CurrentCodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.consumed || time.Now().UTC().After(c.current.expiresAt) {
		c.current = c.newStableCode()
	}

	payload := fmt.Sprintf("%s/?pair=%s&room=%s", c.localURL, c.current.code, c.roomID())
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	qrPayload := ""
	if err == nil {
		qrPayload = base64.StdEncoding.EncodeToString(png)
	}

	return CurrentCodeInfo{
		Code:      c.current.code,
		QRPayload: qrPayload,
		LocalURL:  c.localURL,
		ExpiresAt: c.current.expiresAt,
	}
}

// IssueOneTimeCode mints a 5-minute one-time opaque code for the
// admin-approval "approve new device" flow (scheme a).
func (c *Coordinator) IssueOneTimeCode() string {
	code := randomOpaqueCode()
	now := time.Now().UTC()
	c.mu.Lock()
	c.oneTime[code] = &codeEntry{code: code, createdAt: now, expiresAt: now.Add(defaultCodeTTL)}
	c.mu.Unlock()
	return code
}

// IsValid reports whether code currently refers to an unconsumed,
// unexpired pairing code (stable or one-time).
func (c *Coordinator) IsValid(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(code) != nil
}

// lookupLocked must be called with c.mu held.
func (c *Coordinator) lookupLocked(code string) *codeEntry {
	now := time.Now().UTC()
	if c.current != nil && c.current.code == code && !c.current.consumed && now.Before(c.current.expiresAt) {
		return c.current
	}
	if entry, ok := c.oneTime[code]; ok && !entry.consumed && now.Before(entry.expiresAt) {
		return entry
	}
	return nil
}

// findRawLocked returns the entry for code regardless of its consumed or
// expired state, so callers can distinguish "already consumed" (409) from
// "never existed or expired" (401) — lookupLocked collapses both to nil.
// Must be called with c.mu held.
func (c *Coordinator) findRawLocked(code string) *codeEntry {
	if c.current != nil && c.current.code == code {
		return c.current
	}
	if entry, ok := c.oneTime[code]; ok {
		return entry
	}
	return nil
}

// SetRequireApproval toggles whether Consume blocks for admin approval.
func (c *Coordinator) SetRequireApproval(require bool) {
	c.mu.Lock()
	c.requireApproval = require
	c.mu.Unlock()
}

// Consume validates and consumes code, registering a new device. Per the
// race contract, at most one concurrent Consume for the same code succeeds
// — the consumed flag is flipped under the same lock that looked it up. If
// approval is required, the call blocks (cooperatively, cancellable via
// ctx) until approved, denied, or a 60s timeout elapses.
func (c *Coordinator) Consume(ctx context.Context, code, userAgent string) (ConsumeResult, error) {
	c.mu.Lock()
	entry := c.findRawLocked(code)
	if entry == nil {
		c.mu.Unlock()
		return ConsumeResult{Success: false, Error: "invalid code"}, nil
	}
	if entry.consumed {
		c.mu.Unlock()
		return ConsumeResult{Success: false, Conflict: true, Error: "code already used"}, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		c.mu.Unlock()
		return ConsumeResult{Success: false, Error: "expired code"}, nil
	}
	entry.consumed = true // flip atomically: later concurrent Consume(code) misses above lookup
	requireApproval := c.requireApproval
	c.mu.Unlock()

	if !requireApproval {
		return c.registerDevice(ctx, userAgent)
	}

	reqID := uuid.NewString()
	pa := &pendingApproval{
		requestID: reqID,
		userAgent: userAgent,
		code:      code,
		createdAt: time.Now().UTC(),
		resultCh:  make(chan ConsumeResult, 1),
	}
	c.mu.Lock()
	c.pending[reqID] = pa
	c.mu.Unlock()

	timer := time.NewTimer(defaultApprovalTimeout)
	defer timer.Stop()

	select {
	case res := <-pa.resultCh:
		return res, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
		return ConsumeResult{Success: false, RequiresApproval: true}, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
		return ConsumeResult{Success: false, Error: "cancelled"}, ctx.Err()
	}
}

func (c *Coordinator) registerDevice(ctx context.Context, userAgent string) (ConsumeResult, error) {
	deviceID, token, err := c.registry.Register(ctx, "", userAgent, nil)
	if err != nil {
		return ConsumeResult{Success: false, Error: err.Error()}, nil
	}
	return ConsumeResult{Success: true, DeviceToken: token, DeviceID: deviceID}, nil
}

// PendingRequests lists outstanding approval-gated pairing attempts.
func (c *Coordinator) PendingRequests() []PendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingRequest, 0, len(c.pending))
	for _, pa := range c.pending {
		out = append(out, PendingRequest{RequestID: pa.requestID, Code: pa.code, UserAgent: pa.userAgent, CreatedAt: pa.createdAt})
	}
	return out
}

// Approve resolves a pending approval with a freshly registered device.
func (c *Coordinator) Approve(ctx context.Context, requestID string) error {
	c.mu.Lock()
	pa, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending request %q", requestID)
	}

	res, _ := c.registerDevice(ctx, pa.userAgent)
	pa.resultCh <- res
	return nil
}

// Deny resolves a pending approval with success=false.
func (c *Coordinator) Deny(requestID string) error {
	c.mu.Lock()
	pa, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending request %q", requestID)
	}
	pa.resultCh <- ConsumeResult{Success: false, Error: "denied"}
	return nil
}

func randomOpaqueCode() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
