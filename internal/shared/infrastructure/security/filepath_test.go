package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilePath(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := ValidateFilePath("  ")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrForbiddenPath)
	})

	t.Run("rejects shell metacharacters", func(t *testing.T) {
		for _, char := range forbiddenChars {
			_, err := ValidateFilePath("/tmp/tweets" + char + ".js")
			assert.ErrorIs(t, err, ErrForbiddenPath, "character %q", char)
		}
	})

	t.Run("makes relative paths absolute", func(t *testing.T) {
		result, err := ValidateFilePath("deleted_tweets_log.json")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(result))
	})

	t.Run("resolves symlinks", func(t *testing.T) {
		dir := t.TempDir()
		real := filepath.Join(dir, "tweets.js")
		require.NoError(t, os.WriteFile(real, []byte("[]"), 0o600))
		link := filepath.Join(dir, "archive.js")
		require.NoError(t, os.Symlink(real, link))

		result, err := ValidateFilePath(link)
		require.NoError(t, err)

		expected, _ := filepath.EvalSymlinks(real)
		assert.Equal(t, expected, result)
	})

	t.Run("cleans traversal components", func(t *testing.T) {
		dir := t.TempDir()
		result, err := ValidateFilePath(filepath.Join(dir, "sub", "..", "missing.json"))
		require.NoError(t, err)
		assert.NotContains(t, result, "..")
		assert.Equal(t, "missing.json", filepath.Base(result))
	})
}

func TestSafeReadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads existing file", func(t *testing.T) {
		path := filepath.Join(dir, "tweets.js")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

		data, err := SafeReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "content", string(data))
	})

	t.Run("missing file matches os.ErrNotExist", func(t *testing.T) {
		_, err := SafeReadFile(filepath.Join(dir, "nope.js"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("forbidden path", func(t *testing.T) {
		_, err := SafeReadFile("tweets.js; rm -rf /")
		assert.ErrorIs(t, err, ErrForbiddenPath)
	})
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")
	assert.False(t, Exists(path))

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	assert.True(t, Exists(path))
	assert.False(t, Exists(dir), "directories are not files")
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates file and parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state", "ledger.json")

		require.NoError(t, WriteFileAtomic(path, []byte(`[{"id":"1"}]`), 0o600))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"1"}]`, string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("replaces existing content and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cache.json")
		require.NoError(t, WriteFileAtomic(path, []byte("old"), 0o600))
		require.NoError(t, WriteFileAtomic(path, []byte("new"), 0o600))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("rejects forbidden path", func(t *testing.T) {
		err := WriteFileAtomic("ledger|json", []byte("x"), 0o600)
		assert.ErrorIs(t, err, ErrForbiddenPath)
	})
}
