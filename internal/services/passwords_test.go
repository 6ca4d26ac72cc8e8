package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestArgon2HasherRoundTrip(t *testing.T) {
	hasher := Argon2Hasher{}
	hashed, err := hasher.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashed, "$argon2id$v=19$m=65536,t=3,p=1$"))

	assert.True(t, hasher.Verify("correct horse", hashed))
	assert.False(t, hasher.Verify("battery staple", hashed))

	again, err := hasher.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again, "salt must differ per hash")
}

func TestArgon2HasherAcceptsBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	hasher := Argon2Hasher{}
	assert.True(t, hasher.Verify("hunter2", string(legacy)))
	assert.False(t, hasher.Verify("hunter3", string(legacy)))
}

func TestArgon2HasherRejectsGarbage(t *testing.T) {
	hasher := Argon2Hasher{}
	assert.False(t, hasher.Verify("x", "$argon2id$v=19$m=0,t=0,p=0$AAAA$AAAA"))
	assert.False(t, hasher.Verify("x", "$argon2id$broken"))
	assert.False(t, hasher.Verify("x", ""))
}

func TestArgon2HasherVerifiesWithStoredParams(t *testing.T) {
	cheap := Argon2Hasher{Memory: 8 * 1024, Iterations: 1, KeyLength: 16}
	hashed, err := cheap.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashed, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, Argon2Hasher{}.Verify("correct horse", hashed))
	assert.False(t, Argon2Hasher{}.Verify("correct horse", strings.Replace(hashed, "v=19", "v=16", 1)))
}
