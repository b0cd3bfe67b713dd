// Package identity owns the ServerIdentity: the host's long-lived keypair,
// its derived server_id fingerprint, its display name, and its relay room
// id (spec §4.1). Grounded on the teacher's LoadOrGenerateKey/LoadOrGenerateToken
// atomic-file idiom (internal/auth/auth.go, internal/tunnel/keys.go).
package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/wavecastsh/wavecast/internal/cryptobox"
)

const identityFileName = "server-identity.json"

// PublicIdentity is the redacted, externally-visible projection of a
// ServerIdentity: id, name, public key, room id and generation — never the
// secret key.
type PublicIdentity struct {
	ServerID   string `json:"serverId"`
	Name       string `json:"name"`
	PublicKey  string `json:"publicKey"` // base64
	RoomID     string `json:"roomId"`
	Generation int    `json:"generation"`
}

// onDisk is the JSON persistence shape for server-identity.json.
type onDisk struct {
	ServerID   string `json:"serverId"`
	Name       string `json:"name"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	RoomID     string `json:"roomId"`
	Generation int     `json:"generation"`
}

// Store owns the single ServerIdentity for this host. All access is
// synchronized: identity mutation (rename) and relay-client reads of the
// keypair share one lock.
type Store struct {
	mu       sync.RWMutex
	path     string
	keyPair  cryptobox.KeyPair
	serverID string
	name     string
	roomID   string
	gen      int
}

// Load reads server-identity.json from dataDir, generating and persisting a
// fresh identity if the file is absent or unreadable. Per spec §4.1:
// "I/O errors on load → regenerate and overwrite."
func Load(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, identityFileName)

	s, err := loadFromDisk(path)
	if err == nil {
		return s, nil
	}
	if !os.IsNotExist(err) {
		slog.Warn("identity: load failed, regenerating", "err", err)
	}

	s, genErr := generate(path)
	if genErr != nil {
		return nil, fmt.Errorf("generating identity: %w", genErr)
	}
	return s, nil
}

func loadFromDisk(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d onDisk
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	pub, err := base64.RawURLEncoding.DecodeString(d.PublicKey)
	if err != nil || len(pub) != cryptobox.KeySize {
		return nil, fmt.Errorf("invalid public key in %s", path)
	}
	priv, err := base64.RawURLEncoding.DecodeString(d.PrivateKey)
	if err != nil || len(priv) != cryptobox.KeySize {
		return nil, fmt.Errorf("invalid private key in %s", path)
	}

	s := &Store{path: path, serverID: d.ServerID, name: d.Name, roomID: d.RoomID, gen: d.Generation}
	copy(s.keyPair.Public[:], pub)
	copy(s.keyPair.Private[:], priv)
	return s, nil
}

func generate(path string) (*Store, error) {
	kp, err := cryptobox.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:     path,
		keyPair:  *kp,
		serverID: fingerprint(kp.Public),
		name:     "wavecast",
		roomID:   fingerprint(kp.Public), // room id derives from identity, per spec §3
		gen:      1,
	}
	if err := s.persist(); err != nil {
		// Non-fatal per spec §4.1: continue in memory, surface on next save.
		slog.Error("identity: failed to persist new identity", "err", err)
	}
	return s, nil
}

// fingerprint derives server_id as the first 8 base64 characters of
// sha256(pubkey), per spec §3/§4.1's explicit wording.
func fingerprint(pub [cryptobox.KeySize]byte) string {
	sum := sha256.Sum256(pub[:])
	enc := base64.RawURLEncoding.EncodeToString(sum[:])
	if len(enc) > 8 {
		enc = enc[:8]
	}
	return enc
}

// persist writes server-identity.json atomically: write to a temp file in
// the same directory, then rename over the target.
func (s *Store) persist() error {
	d := onDisk{
		ServerID:   s.serverID,
		Name:       s.name,
		PublicKey:  base64.RawURLEncoding.EncodeToString(s.keyPair.Public[:]),
		PrivateKey: base64.RawURLEncoding.EncodeToString(s.keyPair.Private[:]),
		RoomID:     s.roomID,
		Generation: s.gen,
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling identity: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".server-identity-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// GetPublicIdentity returns id, name, public key, room id and generation;
// the secret key is never included.
func (s *Store) GetPublicIdentity() PublicIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PublicIdentity{
		ServerID:   s.serverID,
		Name:       s.name,
		PublicKey:  base64.RawURLEncoding.EncodeToString(s.keyPair.Public[:]),
		RoomID:     s.roomID,
		Generation: s.gen,
	}
}

// SetServerName renames the server and persists the change.
func (s *Store) SetServerName(name string) error {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.persist(); err != nil {
		// Non-fatal per spec §4.1 save-failure policy.
		slog.Error("identity: failed to persist name change", "err", err)
	}
	return nil
}

// GetRelayRoomID returns the room id peers must join to reach this host.
func (s *Store) GetRelayRoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// KeyPair returns the host's long-lived keypair, for use by the Relay
// Client when sealing/opening tunneled frames.
func (s *Store) KeyPair() cryptobox.KeyPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyPair
}
