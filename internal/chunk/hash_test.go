package chunk

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumMatchesStdlibSHA256(t *testing.T) {
	data := []byte("Hello ObjectMail!")
	want := sha256.Sum256(data)
	got := Sum(data)
	assert.Equal(t, HashKey(want), got)
	assert.Len(t, got.String(), 64)
}

func TestParseHashKeyRoundTrip(t *testing.T) {
	h := Sum([]byte("round trip"))
	parsed, err := ParseHashKey(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseHashKeyRejectsBadInput(t *testing.T) {
	_, err := ParseHashKey("not-hex")
	assert.Error(t, err)

	_, err = ParseHashKey("abcd")
	assert.ErrorIs(t, err, errInvalidHashLength)
}
