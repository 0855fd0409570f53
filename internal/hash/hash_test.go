package hash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestFileStableAcrossRenames(t *testing.T) {
	content := []byte("the same audio bytes")
	a := writeTempFile(t, "original.m4b", content)
	b := writeTempFile(t, "renamed.m4b", content)

	hashA, err := File(a)
	require.NoError(t, err)
	hashB, err := File(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
	assert.Len(t, hashA, 16)
}

func TestFileChangesWithContent(t *testing.T) {
	a := writeTempFile(t, "a.mp3", []byte("first recording"))
	b := writeTempFile(t, "b.mp3", []byte("second recording"))

	hashA, err := File(a)
	require.NoError(t, err)
	hashB, err := File(b)
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.mp3"))
	assert.Error(t, err)
}

func TestTrackDeterministic(t *testing.T) {
	h1 := Track("abc123", 1, 0, 600000)
	h2 := Track("abc123", 1, 0, 600000)
	assert.Equal(t, h1, h2)
}

func TestTrackVariesByBounds(t *testing.T) {
	base := Track("abc123", 1, 0, 600000)

	assert.NotEqual(t, base, Track("abc123", 2, 0, 600000))
	assert.NotEqual(t, base, Track("abc123", 1, 1, 600000))
	assert.NotEqual(t, base, Track("abc123", 1, 0, 600001))
	assert.NotEqual(t, base, Track("other", 1, 0, 600000))
}
