package device

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wavecastsh/wavecast/internal/store"
)

type fakeNotifier struct {
	endedTokens []string
}

func (f *fakeNotifier) EndSessionsForToken(token string) {
	f.endedTokens = append(f.endedTokens, token)
}

func newTestRegistry(t *testing.T) (*Registry, *fakeNotifier) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.db")
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	notifier := &fakeNotifier{}
	return New(st, notifier), notifier
}

func TestRegisterAndValidate(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	deviceID, token, err := reg.Register(ctx, "phone", "wavecast-mobile/1.0", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	gotID, err := reg.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if gotID != deviceID {
		t.Fatalf("expected device id %q, got %q", deviceID, gotID)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	if _, err := reg.Validate(ctx, "not-a-combined-token"); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestValidateRejectsUnknownAndMismatch(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	deviceID, _, err := reg.Register(ctx, "phone", "ua", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := reg.Validate(ctx, "unknown-device:sometoken"); err != ErrUnknown {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
	if _, err := reg.Validate(ctx, deviceID+":wrongtoken"); err != ErrMismatch {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestRevokeRejectsFutureValidation(t *testing.T) {
	ctx := context.Background()
	reg, notifier := newTestRegistry(t)

	deviceID, token, err := reg.Register(ctx, "phone", "ua", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Revoke(ctx, deviceID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if _, err := reg.Validate(ctx, token); err != ErrRevoked {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if len(notifier.endedTokens) != 1 || notifier.endedTokens[0] != deviceID {
		t.Fatalf("expected revocation to notify session manager, got %+v", notifier.endedTokens)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	past := time.Now().UTC().Add(-time.Hour)
	deviceID, token, err := reg.Register(ctx, "phone", "ua", &past)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_ = deviceID

	if _, err := reg.Validate(ctx, token); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	deviceID, token, err := reg.Register(ctx, "phone", "ua", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	newToken, _, err := reg.Refresh(ctx, deviceID, token)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if newToken == token {
		t.Fatalf("expected a rotated token")
	}
	if _, err := reg.Validate(ctx, token); err == nil {
		t.Fatalf("expected old token to be invalid after refresh")
	}
	if _, err := reg.Validate(ctx, newToken); err != nil {
		t.Fatalf("expected new token to validate, got %v", err)
	}
}

func TestListRedactsSecrets(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	_, _, err := reg.Register(ctx, "phone", "ua", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	list, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 device, got %d", len(list))
	}
}
