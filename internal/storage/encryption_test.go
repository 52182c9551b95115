package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fastConfig keeps key derivation cheap in tests.
func fastConfig(password string) *EncryptionConfig {
	return &EncryptionConfig{Password: password, Argon2Time: 1, Argon2Memory: 1024, Argon2Threads: 1}
}

func TestEncryptDecryptData(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		password  string
	}{
		{"simple text", "4 Opt (XLN) 65", "test-password"},
		{"empty", "", "test-password"},
		{"long", string(make([]byte, 10000)), "secure-password-123"},
		{"unicode", "Jötun Grunt, Lim-Dûl's Vault", "pässwörd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := fastConfig(tt.password)

			encrypted, err := EncryptData([]byte(tt.plaintext), config)
			if err != nil {
				t.Fatalf("EncryptData() error = %v", err)
			}
			if len(tt.plaintext) > 0 && bytes.Contains(encrypted, []byte(tt.plaintext)) {
				t.Error("ciphertext contains the plaintext")
			}

			decrypted, err := DecryptData(encrypted, config)
			if err != nil {
				t.Fatalf("DecryptData() error = %v", err)
			}
			if string(decrypted) != tt.plaintext {
				t.Errorf("DecryptData() = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptData_RandomizedOutput(t *testing.T) {
	config := fastConfig("pw")

	a, err := EncryptData([]byte("same input"), config)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptData([]byte("same input"), config)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input should differ")
	}
}

func TestDecryptData_Failures(t *testing.T) {
	encrypted, err := EncryptData([]byte("secret"), fastConfig("right"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecryptData(encrypted, fastConfig("wrong")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password error = %v", err)
	}

	tampered := append([]byte(nil), encrypted...)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := DecryptData(tampered, fastConfig("right")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("tampered data error = %v", err)
	}

	if _, err := DecryptData(encrypted[:saltLength+4], fastConfig("right")); err == nil {
		t.Error("truncated data should fail")
	}

	if _, err := DecryptData(encrypted, nil); err == nil {
		t.Error("nil config should fail")
	}
	if _, err := EncryptData([]byte("x"), fastConfig("")); err == nil {
		t.Error("empty password should fail")
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.db")
	enc := filepath.Join(dir, "plain.db.enc")
	out := filepath.Join(dir, "restored.db")
	content := []byte("SQLite format 3\x00 pretend database")

	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EncryptFile(src, enc, fastConfig("pw")); err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}

	if ok, err := IsEncrypted(enc); err != nil || !ok {
		t.Errorf("IsEncrypted(enc) = %v, %v", ok, err)
	}
	if ok, err := IsEncrypted(src); err != nil || ok {
		t.Errorf("IsEncrypted(src) = %v, %v", ok, err)
	}

	if err := DecryptFile(enc, out, fastConfig("bad")); err == nil {
		t.Error("DecryptFile() with wrong password should fail")
	}
	if err := DecryptFile(src, out, fastConfig("pw")); err == nil {
		t.Error("DecryptFile() of an unencrypted file should fail")
	}

	if err := DecryptFile(enc, out, fastConfig("pw")); err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("round trip = %q", got)
	}
}

func TestIsEncrypted_ShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short")
	if err := os.WriteFile(path, []byte("MTG"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := IsEncrypted(path)
	if err != nil || ok {
		t.Errorf("IsEncrypted() = %v, %v", ok, err)
	}

	if _, err := IsEncrypted(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("IsEncrypted() of a missing file should fail")
	}
}

func TestDefaultEncryptionConfig(t *testing.T) {
	c := DefaultEncryptionConfig("pw")
	if c.Password != "pw" || c.Argon2Time != 1 || c.Argon2Memory != 64*1024 || c.Argon2Threads != 4 {
		t.Errorf("DefaultEncryptionConfig() = %+v", c)
	}
}
