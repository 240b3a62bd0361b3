package pid

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/unabara/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRemove(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "catalog.db"))
	assert.Equal(t, ".pid", filepath.Ext(path))

	require.NoError(t, Write(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	// Re-acquiring our own lock is allowed.
	require.NoError(t, Write(path))

	require.NoError(t, Remove(path))
	assert.NoFileExists(t, path)
	assert.NoError(t, Remove(path))
}

func TestWriteHeldByLiveProcess(t *testing.T) {
	holder := exec.Command("sleep", "30")
	require.NoError(t, holder.Start())
	t.Cleanup(func() {
		holder.Process.Kill()
		holder.Wait()
	})

	path := filepath.Join(t.TempDir(), "catalog.db.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(holder.Process.Pid)), 0o600))

	err := Write(path)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteStaleOrGarbage(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"garbage": "not-a-pid",
		"empty":   "",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		require.NoError(t, Write(path), name)
	}
}
