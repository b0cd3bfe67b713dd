// Package device implements the Device Registry (spec §4.3): issuing,
// validating, refreshing, and revoking device tokens. Persistence is
// delegated to internal/store.DeviceStore (SQLite by default); token
// hashing follows internal/credential's bcrypt idiom; device ids are
// generated with google/uuid, grounded on the teacher's general use of
// github.com/google/uuid for opaque identifiers.
package device

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wavecastsh/wavecast/internal/store"
)

// Sentinel errors per spec §4.3's fail set.
var (
	ErrMalformed = errors.New("malformed device token")
	ErrUnknown   = errors.New("unknown device")
	ErrExpired   = errors.New("device token expired")
	ErrMismatch  = errors.New("device token mismatch")
	ErrRevoked   = errors.New("device revoked")
)

// Device is the redacted, externally-visible projection of a device record
// — no secrets.
type Device struct {
	DeviceID   string     `json:"deviceId"`
	Name       string     `json:"name"`
	UserAgent  string     `json:"userAgent"`
	Status     string     `json:"status"`
	IssuedAt   time.Time  `json:"issuedAt"`
	LastSeenAt time.Time  `json:"lastSeenAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// RevocationNotifier is called when a device is revoked, so the Session
// Manager can terminate any live sessions owned by that device's combined
// token — breaking the Device Registry → Session Manager cycle the same
// way spec §9 breaks Front Door ↔ Relay Client.
type RevocationNotifier interface {
	EndSessionsForToken(token string)
}

// Registry is the Device Registry.
type Registry struct {
	store    store.DeviceStore
	notifier RevocationNotifier
}

// New builds a Registry over the given store. notifier may be nil if no
// session invalidation is wired (e.g. in isolated tests).
func New(st store.DeviceStore, notifier RevocationNotifier) *Registry {
	return &Registry{store: st, notifier: notifier}
}

// Register mints a device and an opaque token, returning (device_id, combined token, expires_at).
func (r *Registry) Register(ctx context.Context, name, userAgent string, expiresAt *time.Time) (deviceID, combinedToken string, err error) {
	deviceID = uuid.NewString()
	token := randomToken()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing device token: %w", err)
	}

	now := time.Now().UTC()
	rec := store.DeviceRecord{
		DeviceID:   deviceID,
		Name:       name,
		UserAgent:  userAgent,
		TokenHash:  string(hash),
		Status:     "active",
		IssuedAt:   now,
		LastSeenAt: now,
		ExpiresAt:  expiresAt,
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		return "", "", fmt.Errorf("registering device: %w", err)
	}

	return deviceID, combine(deviceID, token), nil
}

// Validate parses "id:tok", verifies the device exists, is active, not
// expired, and the token matches; updates last-seen on success.
func (r *Registry) Validate(ctx context.Context, combinedToken string) (deviceID string, err error) {
	deviceID, token, err := split(combinedToken)
	if err != nil {
		return "", ErrMalformed
	}

	rec, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("looking up device: %w", err)
	}
	if rec == nil {
		return "", ErrUnknown
	}
	if rec.Status == "revoked" {
		return "", ErrRevoked
	}
	if rec.ExpiresAt != nil && time.Now().UTC().After(*rec.ExpiresAt) {
		return "", ErrExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.TokenHash), []byte(token)) != nil {
		return "", ErrMismatch
	}

	if err := r.store.UpdateLastSeen(ctx, deviceID, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("updating last seen: %w", err)
	}
	return deviceID, nil
}

// Refresh rotates the secret half of a device's token, preserving device_id.
// oldCombinedToken must validate successfully first.
func (r *Registry) Refresh(ctx context.Context, deviceID, oldCombinedToken string) (newCombinedToken string, expiresAt *time.Time, err error) {
	validatedID, err := r.Validate(ctx, oldCombinedToken)
	if err != nil {
		return "", nil, err
	}
	if validatedID != deviceID {
		return "", nil, ErrMismatch
	}

	rec, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return "", nil, fmt.Errorf("looking up device: %w", err)
	}
	if rec == nil {
		return "", nil, ErrUnknown
	}

	newToken := randomToken()
	hash, err := bcrypt.GenerateFromPassword([]byte(newToken), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing refreshed token: %w", err)
	}
	if err := r.store.UpdateTokenHash(ctx, deviceID, string(hash)); err != nil {
		return "", nil, fmt.Errorf("updating token hash: %w", err)
	}

	return combine(deviceID, newToken), rec.ExpiresAt, nil
}

// Revoke deletes (marks revoked) the device, and — per the resolved Open
// Question in spec §9 — terminates any live session owned by the revoked
// device's combined token. Since the registry no longer holds the
// plaintext token, the notifier is invoked with the device id; callers that
// track sessions by device id use that form, and the Front Door's auth hook
// attaches device id (not the raw token) to authenticated requests for
// exactly this reason.
func (r *Registry) Revoke(ctx context.Context, deviceID string) error {
	if err := r.store.Revoke(ctx, deviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnknown
		}
		return fmt.Errorf("revoking device: %w", err)
	}
	if r.notifier != nil {
		r.notifier.EndSessionsForToken(deviceID)
	}
	return nil
}

// RevokeAll revokes every device and returns the count affected.
func (r *Registry) RevokeAll(ctx context.Context) (int, error) {
	n, err := r.store.RevokeAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoking all devices: %w", err)
	}
	return n, nil
}

// List returns redacted device records (no secrets).
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	out := make([]Device, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Device{
			DeviceID:   rec.DeviceID,
			Name:       rec.Name,
			UserAgent:  rec.UserAgent,
			Status:     rec.Status,
			IssuedAt:   rec.IssuedAt,
			LastSeenAt: rec.LastSeenAt,
			ExpiresAt:  rec.ExpiresAt,
		})
	}
	return out, nil
}

func combine(deviceID, token string) string {
	return deviceID + ":" + token
}

func split(combined string) (deviceID, token string, err error) {
	parts := strings.SplitN(combined, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed combined token")
	}
	return parts[0], parts[1], nil
}

func randomToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failure: %v", err))
	}
	return hex.EncodeToString(buf)
}
