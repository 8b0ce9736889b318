package common

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	a, err := MakeRandHexString(12)
	require.NoError(t, err)
	assert.Len(t, a, 24)
	_, err = hex.DecodeString(a)
	require.NoError(t, err)

	b, err := MakeRandHexString(12)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "two generated passwords should differ")

	empty, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGenerateRandByteArray(t *testing.T) {
	salt := GenerateRandByteArray(16)
	assert.Len(t, salt, 16)
	assert.NotEqual(t, make([]byte, 16), salt)
}

func TestWipeByteArray(t *testing.T) {
	pw := []byte("correct horse")
	WipeByteArray(pw)
	assert.Equal(t, make([]byte, len("correct horse")), pw)
	assert.NotPanics(t, func() { WipeByteArray(nil) })
}
