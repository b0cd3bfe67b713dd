package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGeneratesFreshIdentity(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pub := s.GetPublicIdentity()
	if pub.ServerID == "" {
		t.Fatalf("expected non-empty server id")
	}
	if len(pub.ServerID) != 8 {
		t.Fatalf("expected 8-char server id, got %q (%d chars)", pub.ServerID, len(pub.ServerID))
	}
	if pub.RoomID == "" {
		t.Fatalf("expected non-empty room id")
	}
}

func TestLoadIsStableAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	first, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	firstPub := first.GetPublicIdentity()

	second, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	secondPub := second.GetPublicIdentity()

	if firstPub.ServerID != secondPub.ServerID {
		t.Fatalf("server id changed across restart: %q vs %q", firstPub.ServerID, secondPub.ServerID)
	}
	if firstPub.PublicKey != secondPub.PublicKey {
		t.Fatalf("public key changed across restart")
	}
}

func TestSetServerNamePersists(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.SetServerName("Living Room"); err != nil {
		t.Fatalf("SetServerName: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.GetPublicIdentity().Name != "Living Room" {
		t.Fatalf("expected renamed identity to persist, got %q", reloaded.GetPublicIdentity().Name)
	}
}

func TestLoadRegeneratesOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, identityFileName)
	if err := writeJunk(path); err != nil {
		t.Fatalf("writeJunk: %v", err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load should regenerate on corrupt file, got err: %v", err)
	}
	if s.GetPublicIdentity().ServerID == "" {
		t.Fatalf("expected a freshly generated identity")
	}
}

func writeJunk(path string) error {
	return os.WriteFile(path, []byte("not json"), 0o600)
}
