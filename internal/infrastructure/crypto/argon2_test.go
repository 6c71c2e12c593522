package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klaemsch/authopie/internal/infrastructure/crypto"
)

func newHasher() *crypto.Argon2Hasher {
	return crypto.NewArgon2Hasher(8*1024, 1, 1, 16, 32)
}

func TestHashAndVerify(t *testing.T) {
	hasher := newHasher()

	hash, err := hasher.Hash("hunter2")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(hash), "$argon2id$"))

	ok, err := hasher.Verify("hunter2", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = hasher.Verify("wrong", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	hasher := newHasher()

	first, err := hasher.Hash("hunter2")
	require.NoError(t, err)
	second, err := hasher.Hash("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyRejectsGarbageHash(t *testing.T) {
	hasher := newHasher()

	_, err := hasher.Verify("hunter2", []byte("not-a-phc-string"))
	require.Error(t, err)
}

func TestNeedsRehash(t *testing.T) {
	weak := crypto.NewArgon2Hasher(8*1024, 1, 1, 16, 32)
	strong := crypto.NewArgon2Hasher(16*1024, 2, 1, 16, 32)

	hash, err := weak.Hash("hunter2")
	require.NoError(t, err)

	needs, err := weak.NeedsRehash(hash)
	require.NoError(t, err)
	require.False(t, needs)

	needs, err = strong.NeedsRehash(hash)
	require.NoError(t, err)
	require.True(t, needs)
}

func TestRandomGenerator(t *testing.T) {
	gen := crypto.NewRandomGenerator()

	code, err := gen.GenerateAuthorizationCode()
	require.NoError(t, err)
	require.NotEmpty(t, code)

	other, err := gen.GenerateAuthorizationCode()
	require.NoError(t, err)
	require.NotEqual(t, code, other)

	kid, err := gen.GenerateKID()
	require.NoError(t, err)
	require.Len(t, kid, 32)
}
