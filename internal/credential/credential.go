// Package credential implements the Credential Manager (spec §4.2):
// passphrase generation, password hashing/verification, and policy
// validation. Hashing is grounded on golang.org/x/crypto/bcrypt (already a
// teacher dependency via golang.org/x/crypto); the constant-time token
// compare idiom is grounded on internal/auth/auth.go's ValidateToken.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

// subtleConstantTimeEqual compares two strings in constant time, grounded
// on internal/auth/auth.go's token-compare idiom.
func subtleConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

const authFileName = "auth.json"

// minEntropyBits is the minimum password entropy required by
// ValidatePassword, enforced via go-password-validator's entropy scoring.
const minEntropyBits = 40

// onDisk is the JSON persistence shape for auth.json.
type onDisk struct {
	PassphrasePlain    string `json:"passphrasePlain"`
	PassphraseHash     string `json:"passphraseHash"`
	CustomPasswordHash string `json:"customPasswordHash,omitempty"`
	UseCustom          bool   `json:"useCustom"`
	AccessToken        string `json:"accessToken"`
	AccessTokenRotated string `json:"accessTokenRotatedAt,omitempty"`
}

// Manager owns the active login credential: either the generated passphrase
// or an operator-set custom password.
type Manager struct {
	mu   sync.RWMutex
	path string
	data onDisk
}

// Load reads auth.json from dataDir, generating a fresh passphrase-backed
// credential if the file does not exist.
func Load(dataDir string) (*Manager, error) {
	path := filepath.Join(dataDir, authFileName)

	m := &Manager{path: path}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(raw, &m.data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if m.data.AccessToken == "" {
			m.data.AccessToken = generateAccessToken()
			if err := m.persistLocked(); err != nil {
				return nil, fmt.Errorf("backfilling access token: %w", err)
			}
		}
		return m, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := m.setPassphraseLocked(GeneratePassphrase()); err != nil {
		return nil, fmt.Errorf("generating initial passphrase: %w", err)
	}
	m.data.AccessToken = generateAccessToken()
	if err := m.persistLocked(); err != nil {
		return nil, fmt.Errorf("persisting initial credential: %w", err)
	}
	return m, nil
}

// generateAccessToken mints a new legacy access token: a single long-lived
// shared secret, distinct from per-device tokens, for simple script/browser
// access predating the Device Registry (spec §6 "Access/legacy").
func generateAccessToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failure: %v", err))
	}
	return fmt.Sprintf("%x", buf)
}

// GeneratePassphrase produces an "{adjective}-{noun}-{nn}" passphrase drawn
// uniformly from the curated word lists via crypto/rand.
func GeneratePassphrase() string {
	adj := adjectives[randIndex(len(adjectives))]
	noun := nouns[randIndex(len(nouns))]
	n := randIndex(100)
	return fmt.Sprintf("%s-%s-%02d", adj, noun, n)
}

func randIndex(n int) int {
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failure is unrecoverable in practice; panic mirrors
		// the teacher's treatment of crypto/rand errors as fatal.
		panic(fmt.Sprintf("crypto/rand failure: %v", err))
	}
	return int(v.Int64())
}

func (m *Manager) setPassphraseLocked(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing passphrase: %w", err)
	}
	m.data.PassphrasePlain = plain
	m.data.PassphraseHash = string(hash)
	return nil
}

func (m *Manager) persistLocked() error {
	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling auth.json: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", m.path, err)
	}
	return nil
}

// Verify checks password against the active credential (custom password if
// UseCustom, otherwise the passphrase), using bcrypt's constant-time
// comparison.
func (m *Manager) Verify(password string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash := m.data.PassphraseHash
	if m.data.UseCustom {
		hash = m.data.CustomPasswordHash
	}
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the minimum policy (length, composition via
// entropy scoring) and returns a list of human-readable reasons on failure.
func ValidatePassword(s string) []string {
	var reasons []string
	if len(s) < 8 {
		reasons = append(reasons, "must be at least 8 characters")
	}
	if err := passwordvalidator.Validate(s, minEntropyBits); err != nil {
		reasons = append(reasons, err.Error())
	}
	return reasons
}

// SetCustomPassword validates and activates a custom password, replacing
// whatever credential was previously active. Fails with a non-nil error
// listing policy violations on weak input.
func (m *Manager) SetCustomPassword(password string) error {
	if reasons := ValidatePassword(password); len(reasons) > 0 {
		return fmt.Errorf("invalid policy: %v", reasons)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.CustomPasswordHash = string(hash)
	m.data.UseCustom = true
	return m.persistLocked()
}

// Regenerate produces a new passphrase and activates it as the login
// credential, without touching device records (devices are orthogonal to
// the passphrase per spec §4.2).
func (m *Manager) Regenerate() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.setPassphraseLocked(GeneratePassphrase()); err != nil {
		return "", err
	}
	m.data.UseCustom = false
	if err := m.persistLocked(); err != nil {
		return "", err
	}
	return m.data.PassphrasePlain, nil
}

// Passphrase returns the canonical plaintext passphrase, so the host UI can
// display it regardless of which credential is currently active.
func (m *Manager) Passphrase() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.PassphrasePlain
}

// UsingCustom reports whether a custom password is the active credential.
func (m *Manager) UsingCustom() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.UseCustom
}

// ValidateAccessToken reports whether token matches the current legacy
// access token, via constant-time comparison.
func (m *Manager) ValidateAccessToken(token string) bool {
	if token == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return subtleConstantTimeEqual(m.data.AccessToken, token)
}

// CurrentAccessToken returns the active legacy access token.
func (m *Manager) CurrentAccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.AccessToken
}

// RotateAccessToken replaces the legacy access token and returns the new
// value.
func (m *Manager) RotateAccessToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.AccessToken = generateAccessToken()
	if err := m.persistLocked(); err != nil {
		return "", err
	}
	return m.data.AccessToken, nil
}

// AccessTokenInfo reports whether an access token exists without revealing
// it, for GET /api/access/info.
func (m *Manager) AccessTokenInfo() (exists bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.AccessToken != ""
}
