package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/vocap/internal/utterance"
)

func receive(t *testing.T, ch <-chan utterance.Raw, timeout time.Duration) (utterance.Raw, bool) {
	t.Helper()
	select {
	case r := <-ch:
		return r, true
	case <-time.After(timeout):
		return utterance.Raw{}, false
	}
}

func TestFileWatcher_TailOnStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0600))

	w := &FileWatcher{Path: path, TailLines: 2, Interval: time.Hour}
	lines, err := w.tail()
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, lines)
}

func TestFileWatcher_MissingFile(t *testing.T) {
	w := &FileWatcher{Path: filepath.Join(t.TempDir(), "none.txt"), TailLines: 5}
	lines, err := w.tail()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestFileWatcher_EmitsOnStartAndChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.txt")
	require.NoError(t, os.WriteFile(path, []byte("take a note first\n"), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan utterance.Raw, 64)
	w := &FileWatcher{Path: path, TailLines: 1, Interval: 50 * time.Millisecond}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	r, ok := receive(t, out, 2*time.Second)
	require.True(t, ok, "expected initial scan")
	assert.Equal(t, "take a note first", r.Text)
	assert.Len(t, r.SourceID, 26)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("take a note second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		for {
			select {
			case r := <-out:
				if r.Text == "take a note second" {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFileWatcher_ReportsScanErrors(t *testing.T) {
	dir := t.TempDir()
	// A directory at the file path makes every read fail.
	path := filepath.Join(dir, "transcript.txt")
	require.NoError(t, os.Mkdir(path, 0700))

	errs := make(chan error, 4)
	w := &FileWatcher{
		Path:      path,
		TailLines: 1,
		Interval:  time.Hour,
		OnError:   func(err error) { errs <- err },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, make(chan utterance.Raw)) }()

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a scan error")
	}
}
