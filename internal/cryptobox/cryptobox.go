// Package cryptobox implements the end-to-end authenticated encryption used
// between the Tunnel Client's ephemeral key and the host's long-lived key
// (spec §4.8, §9 "Encryption library choice"). It is a thin, idiomatic
// wrapper over golang.org/x/crypto/nacl/box: curve25519-based sealed boxes,
// fresh nonce per frame.
package cryptobox

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length in bytes of a curve25519 public or private key.
const KeySize = 32

// NonceSize is the length in bytes of a box nonce.
const NonceSize = 24

// KeyPair is a curve25519 keypair usable both for box encryption and as a
// stable identity fingerprint source.
type KeyPair struct {
	Public  [KeySize]byte
	Private [KeySize]byte
}

// GenerateKeyPair creates a fresh keypair using crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	return &KeyPair{Public: *pub, Private: *priv}, nil
}

// Seal encrypts plaintext for peerPublicKey, authenticated with own's
// private key, using a freshly generated nonce prefixed to the ciphertext.
func Seal(plaintext []byte, peerPublicKey *[KeySize]byte, own *KeyPair) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	sealed := box.Seal(nonce[:], plaintext, &nonce, peerPublicKey, &own.Private)
	return sealed, nil
}

// Open decrypts a frame produced by Seal. Authentication or nonce-prefix
// failure returns ok=false; per spec §4.8 "decryption failure silently
// drops the frame" — callers must treat ok=false as a dropped frame, not an
// error to propagate.
func Open(sealed []byte, peerPublicKey *[KeySize]byte, own *KeyPair) (plaintext []byte, ok bool) {
	if len(sealed) < NonceSize {
		return nil, false
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])
	out, ok := box.Open(nil, sealed[NonceSize:], &nonce, peerPublicKey, &own.Private)
	if !ok {
		return nil, false
	}
	return out, true
}
