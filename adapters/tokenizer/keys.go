package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// LoadSigningKey reads a P-256 private key from PEM text or a PEM file path.
// An empty source yields an ephemeral key, which invalidates all tokens on
// restart.
func LoadSigningKey(source string) (*ecdsa.PrivateKey, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	pemBytes := []byte(source)
	if !strings.HasPrefix(source, "-----BEGIN") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		pemBytes = data
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must use the P-256 curve")
	}
	return key, nil
}
