package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	content := []byte("ciphertext bytes")
	path := filepath.Join(t.TempDir(), "c.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestVerifyFile(t *testing.T) {
	content := []byte("stable content")
	path := filepath.Join(t.TempDir(), "c.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	expected, err := HashFile(path)
	require.NoError(t, err)

	ok, actual, err := VerifyFile(path, expected)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, expected, actual)

	// 修改内容后校验应失败但返回实际哈希
	require.NoError(t, os.WriteFile(path, append(content, 'x'), 0o600))

	ok, actual, err = VerifyFile(path, expected)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotEqual(t, expected, actual)
}
