package reload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, r *Reloader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestRunRejectsBadSchedule(t *testing.T) {
	r := New("every now and then", "", func(context.Context) error { return nil })
	err := r.Run(context.Background())
	assert.ErrorContains(t, err, "reload schedule")
}

func TestRunWithoutPathStopsOnCancel(t *testing.T) {
	r := New("@yearly", "", func(context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFileChangeTriggersReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.ics")
	require.NoError(t, os.WriteFile(path, []byte("BEGIN:VCALENDAR\n"), 0o600))

	var calls atomic.Int32
	r := New("@yearly", path, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	r.delay = 10 * time.Millisecond
	start(t, r)

	// The watcher is registered asynchronously; keep touching the file until
	// a reload lands.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("BEGIN:VCALENDAR\nEND:VCALENDAR\n"), 0o600)
		return calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestFailedReloadKeepsWatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.ics")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	var calls atomic.Int32
	r := New("@yearly", path, func(context.Context) error {
		calls.Add(1)
		return errors.New("parse failed")
	})
	r.delay = 10 * time.Millisecond
	start(t, r)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("x"), 0o600)
		return calls.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSiblingFilesAreIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.ics")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	var calls atomic.Int32
	r := New("@yearly", path, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	r.delay = 10 * time.Millisecond
	start(t, r)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
