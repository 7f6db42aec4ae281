package order

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"
)

const (
	tokenBytes      = 32
	DefaultTokenTTL = 7 * 24 * time.Hour
)

// Token is the plaintext capability printed on a shipping label. It is
// returned once at mint time; only its digest is persisted.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newToken(src io.Reader) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenDigest is the lookup key stored alongside an order.
func TokenDigest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var defaultTokenSource io.Reader = rand.Reader
