package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badgie/migrator/internal/debug"
)

func TestWatcherDebouncesMatchingChanges(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	w, err := NewWatcher(dir, "*.sql", debug.Discard(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("SELECT 1"), 0o644))
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewWatcherErrors(t *testing.T) {
	_, err := NewWatcher(t.TempDir(), "[", debug.Discard(), nil)
	assert.Error(t, err)

	_, err = NewWatcher(filepath.Join(t.TempDir(), "missing"), "*.sql", debug.Discard(), nil)
	assert.Error(t, err)
}
