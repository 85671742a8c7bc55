package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
}

func TestSweepRemovesOnlyExpiredEntries(t *testing.T) {
	uploads := t.TempDir()
	frames := t.TempDir()

	oldUpload := filepath.Join(uploads, "a_clip.mp4")
	freshUpload := filepath.Join(uploads, "b_clip.mp4")
	require.NoError(t, os.WriteFile(oldUpload, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(freshUpload, []byte("x"), 0o644))
	touch(t, oldUpload, 2*time.Hour)

	oldSession := filepath.Join(frames, "old-session")
	require.NoError(t, os.MkdirAll(oldSession, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(oldSession, "frame_00001.png"), []byte("x"), 0o644))
	touch(t, oldSession, 90*time.Minute)

	freshSession := filepath.Join(frames, "fresh-session")
	require.NoError(t, os.MkdirAll(freshSession, 0o755))

	s := NewSweeper([]string{uploads, frames, filepath.Join(t.TempDir(), "missing")}, time.Hour, time.Minute, zap.NewNop())
	assert.Equal(t, 2, s.Sweep())

	assert.NoFileExists(t, oldUpload)
	assert.FileExists(t, freshUpload)
	assert.NoDirExists(t, oldSession)
	assert.DirExists(t, freshSession)
}

func TestStartStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	expired := filepath.Join(dir, "stale")
	require.NoError(t, os.WriteFile(expired, []byte("x"), 0o644))
	touch(t, expired, 2*time.Hour)

	s := NewSweeper([]string{dir}, time.Hour, 10*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(expired)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
