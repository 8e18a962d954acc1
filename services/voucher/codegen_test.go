package voucher

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var codePattern = regexp.MustCompile(`^RC_[0-9A-F]{12}$`)

func TestGenerateCodeFormat(t *testing.T) {
	g := NewGenerator("test-secret")

	plain, hash, err := g.Generate()
	require.NoError(t, err)
	require.Regexp(t, codePattern, plain)
	require.Len(t, hash, 64) // sha256 hex
	require.Equal(t, g.Hash(plain), hash)
}

func TestGenerateCodesAreDistinct(t *testing.T) {
	g := NewGenerator("test-secret")

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		plain, _, err := g.Generate()
		require.NoError(t, err)
		require.False(t, seen[plain], "duplicate code %s", plain)
		seen[plain] = true
	}
}

func TestGenerateDeterministicWithFixedSource(t *testing.T) {
	g := NewGenerator("test-secret")
	g.rand = bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01})

	plain, _, err := g.Generate()
	require.NoError(t, err)
	require.Equal(t, "RC_DEADBEEF0001", plain)
}

func TestHashIsKeyedBySecret(t *testing.T) {
	a := NewGenerator("secret-a")
	b := NewGenerator("secret-b")

	require.NotEqual(t, a.Hash("RC_DEADBEEF0001"), b.Hash("RC_DEADBEEF0001"))
	require.Equal(t, a.Hash("RC_DEADBEEF0001"), a.Hash("RC_DEADBEEF0001"))
}
