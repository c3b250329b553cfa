package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultKeyBits is the modulus size used by GenerateKey callers that do not choose one.
const DefaultKeyBits = 2048

// ParsePrivateKeyPEM decodes a PKCS#1 or PKCS#8 PEM encoded RSA private key.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rsa private key: %w", err)
	}
	return key, nil
}

// GenerateKey creates a new RSA key of the given size.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}
	if bits < minRSABits {
		return nil, fmt.Errorf("rsa key must be at least %d bits", minRSABits)
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodePrivateKeyPEM encodes key as a PKCS#8 "PRIVATE KEY" PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, errors.New("nil private key")
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// LoadOrGenerateKey reads the PEM key at path. When the file does not exist
// a new key is generated and written there with 0600 permissions.
// The boolean result reports whether a key was generated.
func LoadOrGenerateKey(path string, bits int) (*rsa.PrivateKey, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := ParsePrivateKeyPEM(data)
		return key, false, err
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	key, err := GenerateKey(bits)
	if err != nil {
		return nil, false, err
	}
	encoded, err := EncodePrivateKeyPEM(key)
	if err != nil {
		return nil, false, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, false, err
		}
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return nil, false, err
	}
	return key, true, nil
}
