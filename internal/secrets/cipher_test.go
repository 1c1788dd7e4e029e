package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbaasd/dbaasd/internal/models"
)

const testKey = "86c22be9f58d8cb40deacd33bdf4a7e10d6ed2a1f3a2490a9dbf80a1ab9f04ba"

func TestNewCipher(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		c, err := NewCipher(testKey)
		require.NoError(t, err)
		require.NotNil(t, c)
	})

	t.Run("key with surrounding whitespace", func(t *testing.T) {
		_, err := NewCipher("  " + testKey + "\n")
		require.NoError(t, err)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := NewCipher("")
		assert.EqualError(t, err, "encryption key is required")
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := NewCipher(strings.Repeat("zz", 32))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not valid hex")
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := NewCipher("deadbeef")
		assert.EqualError(t, err, "encryption key must be 64 hex characters")
	})
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	creds := models.Credentials{
		Host:     "pg.internal.example:5432",
		Username: "app",
		Password: "s3cr3t!",
		Name:     "appdb",
	}
	blob, err := c.Encrypt(creds)
	require.NoError(t, err)
	require.NotEmpty(t, blob)
	assert.NotContains(t, string(blob), creds.Password)

	got, err := c.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestCipherDecryptWrongKey(t *testing.T) {
	c1, err := NewCipher(testKey)
	require.NoError(t, err)
	c2, err := NewCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)

	blob, err := c1.Encrypt(models.Credentials{Host: "h", Username: "u", Password: "p"})
	require.NoError(t, err)

	_, err = c2.Decrypt(blob)
	require.Error(t, err)
}

func TestCipherDecryptTamperedBlob(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	blob, err := c.Encrypt(models.Credentials{Host: "h", Username: "u", Password: "p"})
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xff
	_, err = c.Decrypt(blob)
	require.Error(t, err)
}

func TestCipherDecryptEmptyBlob(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	_, err = c.Decrypt(nil)
	assert.EqualError(t, err, "credentials blob is empty")
}
