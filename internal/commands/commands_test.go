package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateRoundTrip(t *testing.T) {
	issued := time.Date(2025, 9, 1, 12, 30, 0, 0, time.UTC)

	data := EncodeRate(3, 5, issued)
	assert.Equal(t, "rate:3:5:1756729800", data)

	cmd, err := ParseRate(data)
	require.NoError(t, err)
	assert.Equal(t, 3, cmd.Index)
	assert.Equal(t, "5", cmd.Value)
	assert.Equal(t, issued.Unix(), cmd.IssuedAt.Unix())
}

func TestParseRate_Malformed(t *testing.T) {
	for _, data := range []string{
		"",
		"rate",
		"rate:1:5",
		"rate:x:5:1756729800",
		"rate:1:5:abc",
		"shift:claim:3",
	} {
		_, err := ParseRate(data)
		assert.Error(t, err, data)
	}
}

func TestRefRoundTrip(t *testing.T) {
	data := EncodeRef("shift:claim", 42)
	assert.Equal(t, "shift:claim:42", data)

	id, ok := ParseRef("shift:claim", data)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestParseRef_WrongAction(t *testing.T) {
	_, ok := ParseRef("reg", "shift:claim:42")
	assert.False(t, ok)

	_, ok = ParseRef("reg", "reg:notanumber")
	assert.False(t, ok)
}
