package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/internal/config"
)

func TestTestEnv_Path(t *testing.T) {
	env := NewTestEnv(t)

	path := env.Path("a", "b.txt")
	assert.Equal(t, filepath.Join(env.RootDir(), "a", "b.txt"), path)
	assert.Equal(t, filepath.Clean(env.RootDir()), env.Path())
}

func TestTestEnv_WriteReadFile(t *testing.T) {
	env := NewTestEnv(t)

	abs := env.WriteFile("nested/dir/file.txt", []byte("hello"))
	assert.True(t, strings.HasPrefix(abs, env.RootDir()))
	assert.True(t, env.FileExists("nested/dir/file.txt"))
	assert.False(t, env.FileExists("missing.txt"))
	assert.Equal(t, "hello", string(env.ReadFile("nested/dir/file.txt")))
}

func TestTestEnv_SetEnv(t *testing.T) {
	env := NewTestEnv(t)

	env.SetEnv("LIBRIS_TESTUTIL_VAR", "value")
	assert.Equal(t, "value", os.Getenv("LIBRIS_TESTUTIL_VAR"))
}

func TestTestEnv_String(t *testing.T) {
	env := NewTestEnv(t)
	assert.Contains(t, env.String(), env.RootDir())
}

func TestSetTestConfig(t *testing.T) {
	before := SaveConfigState()

	t.Run("applies", func(t *testing.T) {
		env := NewTestEnv(t)
		SetTestConfig(t, env, "http://catalog.local")

		assert.Equal(t, env.Path("libris.db"), config.DBFile)
		assert.Equal(t, env.Path("covers"), config.CoversDir)
		assert.Equal(t, "http://catalog.local", config.BaseURL)
		assert.Zero(t, config.RateLimit)
		assert.Equal(t, 600, config.CoversMaxWidth)
	})

	require.Equal(t, before, SaveConfigState())
}

func TestSaveRestoreConfigState(t *testing.T) {
	ResetConfig(t)

	config.DBFile = "one.db"
	state := SaveConfigState()

	config.DBFile = "two.db"
	config.Browser = true
	RestoreConfigState(state)

	assert.Equal(t, "one.db", config.DBFile)
	assert.False(t, config.Browser)
}
