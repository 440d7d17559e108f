package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, h.Verify(hash, "s3cret-pass"))
	assert.ErrorIs(t, h.Verify(hash, "wrong-pass"), ErrPasswordMismatch)
	assert.Error(t, h.Verify("not-a-hash", "s3cret-pass"))

	_, err = h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
