package vault

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	e, err := NewEngine(key)
	require.NoError(t, err)

	return e
}

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "plain.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path
}

func TestNewEngineRejectsBadKey(t *testing.T) {
	_, err := NewEngine([]byte("short"))
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	plaintext := []byte("secret report contents")
	src := writeTemp(t, plaintext)
	enc := filepath.Join(dir, "enc.bin")
	dec := filepath.Join(dir, "dec.bin")

	nonce, err := e.EncryptFile(src, enc)
	require.NoError(t, err)
	require.Len(t, nonce, 12)

	ciphertext, err := os.ReadFile(enc)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	require.NoError(t, e.DecryptFile(enc, dec, nonce))

	got, err := os.ReadFile(dec)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	src := writeTemp(t, []byte("same input"))

	nonce1, err := e.EncryptFile(src, filepath.Join(dir, "a.bin"))
	require.NoError(t, err)

	nonce2, err := e.EncryptFile(src, filepath.Join(dir, "b.bin"))
	require.NoError(t, err)

	assert.NotEqual(t, nonce1, nonce2)

	c1, err := os.ReadFile(filepath.Join(dir, "a.bin"))
	require.NoError(t, err)
	c2, err := os.ReadFile(filepath.Join(dir, "b.bin"))
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	src := writeTemp(t, []byte("payload"))
	enc := filepath.Join(dir, "enc.bin")

	nonce, err := e.EncryptFile(src, enc)
	require.NoError(t, err)

	data, err := os.ReadFile(enc)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(enc, data, 0o600))

	dec := filepath.Join(dir, "dec.bin")
	err = e.DecryptFile(enc, dec, nonce)
	assert.Error(t, err)

	_, statErr := os.Stat(dec)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDecryptWrongNonceFails(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	src := writeTemp(t, []byte("payload"))
	enc := filepath.Join(dir, "enc.bin")

	_, err := e.EncryptFile(src, enc)
	require.NoError(t, err)

	wrong := make([]byte, 12)
	err = e.DecryptFile(enc, filepath.Join(dir, "dec.bin"), wrong)
	assert.Error(t, err)
}

func TestCiphertextFilePermissions(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	src := writeTemp(t, []byte("payload"))
	enc := filepath.Join(dir, "enc.bin")

	_, err := e.EncryptFile(src, enc)
	require.NoError(t, err)

	info, err := os.Stat(enc)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
