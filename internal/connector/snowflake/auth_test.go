package snowflake

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeKeyPEM writes a PEM block to a temp file and returns its path.
func writeKeyPEM(t *testing.T, blockType string, derBytes []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse_key.pem")
	buf := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: derBytes})
	if err := os.WriteFile(path, buf, 0600); err != nil {
		t.Fatalf("write temp PEM: %v", err)
	}
	return path
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return key
}

func TestLoadPrivateKeyFormats(t *testing.T) {
	key := newRSAKey(t)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal PKCS8: %v", err)
	}

	tests := []struct {
		name      string
		blockType string
		der       []byte
	}{
		{"pkcs1", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)},
		{"pkcs8", "PRIVATE KEY", pkcs8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeKeyPEM(t, tt.blockType, tt.der)
			loaded, err := loadPrivateKey(path)
			if err != nil {
				t.Fatalf("loadPrivateKey: %v", err)
			}
			if loaded.N.Cmp(key.N) != 0 {
				t.Error("loaded key modulus does not match original")
			}
		})
	}
}

func TestLoadPrivateKey_FileNotFound(t *testing.T) {
	_, err := loadPrivateKey("/nonexistent/path/warehouse_key.pem")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read private key file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadPrivateKey_InvalidPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	os.WriteFile(path, []byte("not a pem file"), 0600)

	_, err := loadPrivateKey(path)
	if err == nil {
		t.Fatal("expected error for invalid PEM")
	}
	if !strings.Contains(err.Error(), "no PEM block") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadPrivateKey_UnsupportedBlockType(t *testing.T) {
	path := writeKeyPEM(t, "EC PRIVATE KEY", []byte("fake"))

	_, err := loadPrivateKey(path)
	if err == nil {
		t.Fatal("expected error for unsupported block type")
	}
	if !strings.Contains(err.Error(), "unsupported PEM block type") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildJWTDSN(t *testing.T) {
	key := newRSAKey(t)
	der, _ := x509.MarshalPKCS8PrivateKey(key)
	keyPath := writeKeyPEM(t, "PRIVATE KEY", der)

	dsn := "prism_reader@acme-analytics/analytics/PUBLIC?warehouse=PRISM_WH"

	newDSN, err := buildJWTDSN(dsn, keyPath)
	if err != nil {
		t.Fatalf("buildJWTDSN: %v", err)
	}

	lowerDSN := strings.ToLower(newDSN)
	if !strings.Contains(lowerDSN, "authenticator=snowflake_jwt") {
		t.Errorf("DSN missing authenticator param: %s", newDSN)
	}
	if !strings.Contains(newDSN, "prism_reader") {
		t.Errorf("DSN missing user: %s", newDSN)
	}
	// The placeholder password injected to satisfy the DSN parser must not
	// survive into the rebuilt DSN.
	if strings.Contains(newDSN, "prism_reader:_@") {
		t.Errorf("placeholder password leaked into DSN: %s", newDSN)
	}
}

func TestBuildJWTDSN_PasswordDSN(t *testing.T) {
	key := newRSAKey(t)
	der, _ := x509.MarshalPKCS8PrivateKey(key)
	keyPath := writeKeyPEM(t, "PRIVATE KEY", der)

	// A DSN that already carries a password parses directly; JWT auth
	// drops the password either way.
	newDSN, err := buildJWTDSN("prism_reader:hunter2@acme-analytics/analytics/PUBLIC", keyPath)
	if err != nil {
		t.Fatalf("buildJWTDSN: %v", err)
	}
	if strings.Contains(newDSN, "hunter2") {
		t.Errorf("password leaked into JWT DSN: %s", newDSN)
	}
}

func TestBuildJWTDSN_InvalidDSN(t *testing.T) {
	key := newRSAKey(t)
	der, _ := x509.MarshalPKCS8PrivateKey(key)
	keyPath := writeKeyPEM(t, "PRIVATE KEY", der)

	_, err := buildJWTDSN(":::invalid", keyPath)
	if err == nil {
		t.Fatal("expected error for invalid DSN")
	}
}

func TestBuildJWTDSN_BadKeyFile(t *testing.T) {
	_, err := buildJWTDSN("prism_reader@acme-analytics/analytics/PUBLIC", "/nonexistent/key.pem")
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
}
