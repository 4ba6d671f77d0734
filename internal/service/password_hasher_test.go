package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_Argon2id(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHasher(AlgorithmArgon2id)
	require.NoError(t, err)

	digest, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.Contains(t, digest, "$argon2id$v=19$m=65536,t=1,p=4$")

	again, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, digest, again, "salt must differ")

	assert.True(t, h.Verify("correct horse", digest))
	assert.False(t, h.Verify("wrong horse", digest))
	assert.False(t, h.NeedsRehash(digest))
}

func TestPasswordHasher_BcryptLegacyDigest(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHasher(AlgorithmArgon2id)
	require.NoError(t, err)

	legacy, err := bcrypt.GenerateFromPassword([]byte("p1"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, h.Verify("p1", string(legacy)))
	assert.False(t, h.Verify("p2", string(legacy)))
	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestPasswordHasher_BcryptConfigured(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHasher(AlgorithmBcrypt)
	require.NoError(t, err)
	h.bcryptCost = bcrypt.MinCost

	digest, err := h.Hash("secret-password")
	require.NoError(t, err)
	assert.True(t, h.Verify("secret-password", digest))
	assert.False(t, h.NeedsRehash(digest))

	argon, err := (&PasswordHasher{algorithm: AlgorithmArgon2id}).Hash("secret-password")
	require.NoError(t, err)
	assert.True(t, h.NeedsRehash(argon))
}

func TestPasswordHasher_MalformedDigestsNeverMatch(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHasher(AlgorithmArgon2id)
	require.NoError(t, err)

	for _, digest := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=1,p=4$onlyfive",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=999$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$a2V5",
		"$2a$10$short",
		"$pbkdf2-sha256$1000$abc$def",
	} {
		assert.False(t, h.Verify("anything", digest), digest)
	}
}

func TestPasswordHasher_RejectsEmptyAndUnknown(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHasher(AlgorithmArgon2id)
	require.NoError(t, err)

	_, err = h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, err = NewPasswordHasher("md5")
	require.Error(t, err)
}
