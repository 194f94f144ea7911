package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	t.Run("round trip", func(t *testing.T) {
		hash, algo, err := h.Hash("correct horse")
		require.NoError(t, err)
		assert.Equal(t, "bcrypt:4", algo)
		assert.True(t, h.Verify(hash, "correct horse"))
		assert.False(t, h.Verify(hash, "correct horse "))
	})

	t.Run("salted", func(t *testing.T) {
		a, _, err := h.Hash("same")
		require.NoError(t, err)
		b, _, err := h.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, _, err := h.Hash("")
		assert.ErrorIs(t, err, ErrEmptyPassword)
	})

	t.Run("malformed digest does not verify", func(t *testing.T) {
		assert.False(t, h.Verify("not-a-hash", "pw"))
		assert.False(t, h.Verify("", ""))
	})

	t.Run("needs rehash on cost change", func(t *testing.T) {
		hash, _, err := h.Hash("pw")
		require.NoError(t, err)
		assert.False(t, h.NeedsRehash(hash))
		assert.True(t, BcryptHasher{Cost: bcrypt.MinCost + 1}.NeedsRehash(hash))
		assert.True(t, h.NeedsRehash("$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"))
	})
}

func TestArgon2idHasher(t *testing.T) {
	h := Argon2idHasher{Time: 1, Memory: 8 * 1024, Threads: 1}

	hash, algo, err := h.Hash("password123")
	require.NoError(t, err)
	assert.Equal(t, AlgoArgon2id, algo)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))
	assert.True(t, h.Verify(hash, "password123"))
	assert.False(t, h.Verify(hash, "password124"))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, NewArgon2idHasher().NeedsRehash(hash))

	_, _, err = h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	for _, bad := range []string{
		"not-a-valid-hash",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=999$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=0,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=4294967295,t=1,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=16,t=1,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=65536,t=4294967295,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5",
		"$argon2id$v=16$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5",
	} {
		assert.NotPanics(t, func() { assert.False(t, h.Verify(bad, "password"), bad) }, bad)
		assert.True(t, h.NeedsRehash(bad), bad)
	}
}

func TestMultiHasher_MalformedArgon2Digest(t *testing.T) {
	m, err := NewHasher(HasherConfig{Algo: AlgoBcrypt, BcryptCost: 10})
	require.NoError(t, err)

	digest := "$argon2id$v=19$m=65536,t=0,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5"
	assert.NotPanics(t, func() { assert.False(t, m.Verify(digest, "pw")) })
	assert.True(t, m.NeedsRehash(digest))
}

func TestMultiHasher(t *testing.T) {
	bc := BcryptHasher{Cost: bcrypt.MinCost}
	ar := Argon2idHasher{Time: 1, Memory: 8 * 1024, Threads: 1}
	m := MultiHasher{Primary: ar, Bcrypt: bc, Argon2: ar}

	legacy, _, err := bc.Hash("pw")
	require.NoError(t, err)
	assert.True(t, m.Verify(legacy, "pw"))
	assert.True(t, m.NeedsRehash(legacy))

	current, algo, err := m.Hash("pw")
	require.NoError(t, err)
	assert.Equal(t, AlgoArgon2id, algo)
	assert.True(t, m.Verify(current, "pw"))
	assert.False(t, m.NeedsRehash(current))

	assert.False(t, m.Verify("plaintext", "plaintext"))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher(HasherConfig{Algo: AlgoBcrypt, BcryptCost: 4})
	require.NoError(t, err)
	assert.Equal(t, MinBcryptCost, h.Bcrypt.Cost)
	assert.IsType(t, BcryptHasher{}, h.Primary)

	h, err = NewHasher(HasherConfig{Algo: AlgoArgon2id, BcryptCost: 12})
	require.NoError(t, err)
	assert.IsType(t, Argon2idHasher{}, h.Primary)

	_, err = NewHasher(HasherConfig{Algo: "md5"})
	assert.Error(t, err)
	_, err = NewHasher(HasherConfig{Algo: AlgoBcrypt, BcryptCost: 40})
	assert.Error(t, err)
}

func TestHasherConfigFromEnv(t *testing.T) {
	t.Setenv("PASSWORD_HASH_ALGO", "")
	t.Setenv("BCRYPT_COST", "")
	cfg := HasherConfigFromEnv()
	assert.Equal(t, AlgoBcrypt, cfg.Algo)
	assert.Equal(t, DefaultBcryptCost, cfg.BcryptCost)

	t.Setenv("PASSWORD_HASH_ALGO", " Argon2id ")
	t.Setenv("BCRYPT_COST", "11")
	cfg = HasherConfigFromEnv()
	assert.Equal(t, AlgoArgon2id, cfg.Algo)
	assert.Equal(t, 11, cfg.BcryptCost)
}
