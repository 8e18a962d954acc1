package voucher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// CodePrefix is the public, non-secret prefix of every voucher code.
const CodePrefix = "RC_"

const codeRandomBytes = 6 // 48 bits of entropy

// Generator produces voucher codes and their keyed lookup hashes. The random
// source is injectable so tests can generate deterministic codes.
type Generator struct {
	secret string
	rand   io.Reader
}

func NewGenerator(secret string) *Generator {
	return &Generator{secret: secret, rand: rand.Reader}
}

// Generate returns a fresh plaintext code and its lookup hash. The plaintext
// is shown to the creator once; only the hash resolves a presented code.
func (g *Generator) Generate() (plainCode, lookupHash string, err error) {
	buf := make([]byte, codeRandomBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", "", fmt.Errorf("read random source: %w", err)
	}

	plainCode = CodePrefix + strings.ToUpper(hex.EncodeToString(buf))
	return plainCode, g.Hash(plainCode), nil
}

// Hash computes the keyed lookup hash for a plaintext code.
func (g *Generator) Hash(plainCode string) string {
	sum := sha256.Sum256([]byte(plainCode + g.secret))
	return hex.EncodeToString(sum[:])
}
