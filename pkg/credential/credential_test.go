package credential

import "testing"

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("test-master-secret", "test-salt")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	ciphertext, err := c.Encrypt("regtech-user", "s3cr3t-pass")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == "" {
		t.Fatal("expected non-empty ciphertext")
	}

	username, password, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if username != "regtech-user" || password != "s3cr3t-pass" {
		t.Fatalf("got (%q, %q), want (regtech-user, s3cr3t-pass)", username, password)
	}
}

func TestNewCipherRequiresMasterSecret(t *testing.T) {
	if _, err := NewCipher("", "salt"); err == nil {
		t.Fatal("expected error for empty master secret")
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	c, err := NewCipher("test-master-secret", "test-salt")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	ciphertext, err := c.Encrypt("user", "pass")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 0x01

	if _, _, err := c.Decrypt(string(tampered)); err == nil {
		t.Fatal("expected decryption of tampered ciphertext to fail")
	}
}

func TestTwoCiphersWithDifferentSaltsProduceDifferentKeys(t *testing.T) {
	a, err := NewCipher("same-secret", "salt-a")
	if err != nil {
		t.Fatalf("NewCipher a: %v", err)
	}
	b, err := NewCipher("same-secret", "salt-b")
	if err != nil {
		t.Fatalf("NewCipher b: %v", err)
	}

	ciphertext, err := a.Encrypt("user", "pass")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, _, err := b.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption with a different salt-derived key to fail")
	}
}
