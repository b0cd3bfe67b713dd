package credential

import (
	"regexp"
	"testing"
)

var passphrasePattern = regexp.MustCompile(`^[a-z]+-[a-z]+-\d{2}$`)

func TestGeneratePassphraseShape(t *testing.T) {
	p := GeneratePassphrase()
	if !passphrasePattern.MatchString(p) {
		t.Fatalf("passphrase %q does not match adjective-noun-NN shape", p)
	}
}

func TestLoadGeneratesInitialCredential(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Passphrase() == "" {
		t.Fatalf("expected a generated passphrase")
	}
	if !m.Verify(m.Passphrase()) {
		t.Fatalf("expected generated passphrase to verify")
	}
	if m.Verify("wrong-guess-00") {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestSetCustomPasswordActivatesIt(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	oldPassphrase := m.Passphrase()

	if err := m.SetCustomPassword("correct-horse-battery-staple-9"); err != nil {
		t.Fatalf("SetCustomPassword: %v", err)
	}
	if !m.Verify("correct-horse-battery-staple-9") {
		t.Fatalf("expected custom password to verify")
	}
	if m.Verify(oldPassphrase) {
		t.Fatalf("expected passphrase to no longer verify once custom password is active")
	}
}

func TestSetCustomPasswordRejectsWeakInput(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.SetCustomPassword("123"); err == nil {
		t.Fatalf("expected weak password to be rejected")
	}
}

func TestRegenerateProducesNewPassphrase(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	old := m.Passphrase()

	fresh, err := m.Regenerate()
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if fresh == old {
		t.Fatalf("expected a different passphrase after regenerate")
	}
	if !m.Verify(fresh) {
		t.Fatalf("expected regenerated passphrase to verify")
	}
	if m.UsingCustom() {
		t.Fatalf("expected regenerate to leave custom password inactive")
	}
}

func TestAccessTokenRotation(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.AccessTokenInfo() {
		t.Fatalf("expected an access token to exist after Load")
	}

	rotated, err := m.RotateAccessToken()
	if err != nil {
		t.Fatalf("RotateAccessToken: %v", err)
	}
	if !m.ValidateAccessToken(rotated) {
		t.Fatalf("expected rotated token to validate")
	}
	if m.ValidateAccessToken("stale") {
		t.Fatalf("expected stale token to fail validation")
	}
}

func TestLoadPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	first, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	passphrase := first.Passphrase()

	second, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if second.Passphrase() != passphrase {
		t.Fatalf("expected passphrase to persist across restarts")
	}
}
