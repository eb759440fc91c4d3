package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestNewConsoleWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsole(&buf)

	l.Info("job finished", zap.String("job", "alpha"), zap.Int("found", 3))

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "job finished")
	assert.Contains(t, out, `"job": "alpha"`)
	assert.Contains(t, out, `"found": 3`)
}

func TestInitWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.log")

	l, err := Init(Config{Level: "debug", Encoding: "json", OutputPath: path, Service: "test"})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, Get())
	assert.NoError(t, Sync())
}
