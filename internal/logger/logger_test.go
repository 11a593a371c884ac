package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	log, err := New(dir, "debug", false)
	require.NoError(t, err)
	log.Debugw("autosave flushed", "site", "s1")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(filepath.Join(dir, "logs", time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"msg":"autosave flushed"`)
	require.Contains(t, string(raw), `"level":"debug"`)
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(t.TempDir(), "loud", false)
	require.Error(t, err)
}
