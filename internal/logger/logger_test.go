package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_DebugToggle(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "", 0, 0, false)
	require.NoError(t, err)

	l.Debug("hidden %d", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.False(t, l.IsDebug())

	l.SetDebug(true)
	assert.True(t, l.IsDebug())
	l.Debug("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), "level=debug")
}

func TestLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bluetray.log")
	var buf bytes.Buffer
	l, err := newLogger(&buf, path, 1, 2, false)
	require.NoError(t, err)

	l.Warn("adapter %s missing", "hci1")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "adapter hci1 missing")
	assert.Contains(t, buf.String(), "level=warning")
	assert.Equal(t, path, l.GetFilePath())
}

func TestRotatingFile_KeepsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	r := &rotatingFile{path: path, maxBytes: 16, maxBackups: 2}
	require.NoError(t, r.open())

	for _, line := range []string{"first line 0001\n", "second line 002\n", "third line 0003\n"} {
		_, err := r.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, r.Close())

	b1, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "third line 0003\n", string(b1))

	b2, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "second line 002\n", string(b2))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))

	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(cur)))
}

func TestGlobal_BeforeInit(t *testing.T) {
	globalMu.Lock()
	prev := globalLogger
	globalLogger = nil
	globalMu.Unlock()
	defer func() {
		globalMu.Lock()
		globalLogger = prev
		globalMu.Unlock()
	}()

	assert.NotPanics(t, func() {
		Info("dropped")
		SetDebug(true)
	})
	assert.False(t, IsDebug())
}
