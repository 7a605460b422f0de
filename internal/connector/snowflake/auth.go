package snowflake

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	gosnowflake "github.com/snowflakedb/gosnowflake"
)

// buildJWTDSN parses the given DSN, loads the private key from keyPath,
// sets JWT authenticator fields, and re-serializes the DSN.
func buildJWTDSN(dsn, keyPath string) (string, error) {
	// gosnowflake.ParseDSN requires a password even for JWT auth.
	// If the DSN has no password (user@account/db format), inject a
	// placeholder so parsing succeeds; JWT auth ignores it.
	sfConfig, err := gosnowflake.ParseDSN(dsn)
	if err != nil && strings.Contains(err.Error(), "password is empty") {
		if idx := strings.Index(dsn, "@"); idx > 0 && !strings.Contains(dsn[:idx], ":") {
			dsn = dsn[:idx] + ":_" + dsn[idx:]
		}
		sfConfig, err = gosnowflake.ParseDSN(dsn)
	}
	if err != nil {
		return "", fmt.Errorf("parse DSN: %w", err)
	}
	sfConfig.Password = ""

	privKey, err := loadPrivateKey(keyPath)
	if err != nil {
		return "", err
	}

	sfConfig.Authenticator = gosnowflake.AuthTypeJwt
	sfConfig.PrivateKey = privKey

	newDSN, err := gosnowflake.DSN(sfConfig)
	if err != nil {
		return "", fmt.Errorf("rebuild DSN: %w", err)
	}
	return newDSN, nil
}

// loadPrivateKey reads a PEM-encoded private key file and returns an
// *rsa.PrivateKey. Supports both PKCS#1 (RSA PRIVATE KEY) and PKCS#8
// (PRIVATE KEY) formats, with or without passphrase-less encryption.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file %q: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %q", path)
	}

	var key interface{}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q (expected RSA PRIVATE KEY or PRIVATE KEY)", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA (got %T)", key)
	}
	return rsaKey, nil
}
