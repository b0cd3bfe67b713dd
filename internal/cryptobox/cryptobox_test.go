package cryptobox

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	client, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}
	host, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("host keypair: %v", err)
	}

	msg := []byte(`{"type":"api-request","request_id":"abc123"}`)
	sealed, err := Seal(msg, &host.Public, client)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	opened, ok := Open(sealed, &client.Public, host)
	if !ok {
		t.Fatalf("Open failed, expected success")
	}
	if string(opened) != string(msg) {
		t.Fatalf("round trip mismatch: got %q want %q", opened, msg)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	client, _ := GenerateKeyPair()
	host, _ := GenerateKeyPair()

	sealed, err := Seal([]byte("hello"), &host.Public, client)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	if _, ok := Open(sealed, &client.Public, host); ok {
		t.Fatalf("expected tampered ciphertext to fail authentication")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	client, _ := GenerateKeyPair()
	host, _ := GenerateKeyPair()
	impostor, _ := GenerateKeyPair()

	sealed, err := Seal([]byte("hello"), &host.Public, client)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, ok := Open(sealed, &impostor.Public, host); ok {
		t.Fatalf("expected wrong sender key to fail authentication")
	}
}

func TestOpenRejectsShortFrame(t *testing.T) {
	host, _ := GenerateKeyPair()
	if _, ok := Open([]byte("short"), &host.Public, host); ok {
		t.Fatalf("expected short frame to be rejected")
	}
}
