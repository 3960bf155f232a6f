package lockfile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquisition(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, "serve")
	require.NoError(t, err, "Failed to acquire lock")
	defer lock.Release()

	content, err := os.ReadFile(filepath.Join(dir, LockFileName))
	require.NoError(t, err, "Failed to read lock file")
	info := parseInfo(bufio.NewScanner(strings.NewReader(string(content))))
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "serve", info.Command)
	assert.False(t, info.Started.IsZero(), "expected start time")
}

func TestLockConflict(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, "serve")
	require.NoError(t, err, "Failed to acquire lock")
	defer lock.Release()

	_, err = AcquireLock(dir, "serve")
	require.Error(t, err, "expected second acquisition to fail")
	var lockErr *LockError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, os.Getpid(), lockErr.Holder.PID)
	assert.Contains(t, err.Error(), "another EssayPipe server")

	// The failed attempt must leave the holder's information intact.
	info := readInfo(filepath.Join(dir, LockFileName))
	assert.Equal(t, os.Getpid(), info.PID, "holder info clobbered: %+v", info)
}

func TestLockReleaseAndReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, "serve")
	require.NoError(t, err, "Failed to acquire lock")
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release(), "second Release")

	_, err = os.Stat(filepath.Join(dir, LockFileName))
	assert.True(t, os.IsNotExist(err), "lock file should be removed, stat err = %v", err)

	again, err := AcquireLock(dir, "serve")
	require.NoError(t, err, "re-acquire failed")
	again.Release()
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		content string
		pid     int
		command string
	}{
		{"pid=1234\ncommand=serve\n", 1234, "serve"},
		{"pid=abc\n", 0, ""},
		{"garbage", 0, ""},
		{"", 0, ""},
		{"command=chat\npid=42\nextra=1\n", 42, "chat"},
	}
	for _, tt := range tests {
		info := parseInfo(bufio.NewScanner(strings.NewReader(tt.content)))
		assert.Equal(t, tt.pid, info.PID, "parseInfo(%q)", tt.content)
		assert.Equal(t, tt.command, info.Command, "parseInfo(%q)", tt.content)
	}
}

func TestInfoString(t *testing.T) {
	assert.Equal(t, "unknown process", (Info{}).String())
	assert.Contains(t, (Info{PID: os.Getpid()}).String(), "(running)", "own process should be running")
	assert.Contains(t, (Info{PID: 999999}).String(), "stale", "missing process should be stale")
}

func TestNonExistentDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := AcquireLock(dir, "serve")
	require.NoError(t, err, "expected directory to be created")
	lock.Release()
}
