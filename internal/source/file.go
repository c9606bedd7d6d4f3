package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hpungsan/vocap/internal/logging"
	"github.com/hpungsan/vocap/internal/utterance"
)

// maxTailBytes bounds how much of the end of the file each scan reads.
const maxTailBytes = 256 * 1024

// FileWatcher observes a transcript file. Change notifications and a
// polling ticker both trigger a scan, and every scan re-emits the last
// TailLines lines, so the same utterance is routinely observed several
// times. The capture pipeline's dedup absorbs the repeats.
type FileWatcher struct {
	Path      string
	TailLines int
	Interval  time.Duration
	Logger    *zap.Logger

	// OnError is called for read failures that do not stop the watcher.
	OnError func(error)

	now func() time.Time
}

// Name implements Source.
func (w *FileWatcher) Name() string {
	return "file"
}

// Run implements Source.
func (w *FileWatcher) Run(ctx context.Context, out chan<- utterance.Raw) error {
	logger := logging.OrNop(w.Logger).With(zap.String("source", w.Name()), zap.String("path", w.Path))
	if w.now == nil {
		w.now = time.Now
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so that a file replaced by rename is still seen.
	if err := watcher.Add(filepath.Dir(w.Path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.Path), err)
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	scan := func(trigger string) bool {
		lines, err := w.tail()
		if err != nil {
			logger.Warn("transcript scan failed", zap.String("trigger", trigger), zap.Error(err))
			if w.OnError != nil {
				w.OnError(err)
			}
			return true
		}
		for _, line := range lines {
			if !emit(ctx, out, line, func(text string) utterance.Raw { return utterance.NewRaw(text, w.now()) }) {
				return false
			}
		}
		return true
	}

	if !scan("start") {
		return nil
	}

	target := filepath.Clean(w.Path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !scan("poll") {
				return nil
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if !scan("notify") {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// tail returns the last TailLines non-empty lines of the file. A missing
// file has no lines.
func (w *FileWatcher) tail() ([]string, error) {
	f, err := os.Open(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := info.Size() - maxTailBytes
	if offset < 0 {
		offset = 0
	}
	data, err := io.ReadAll(io.NewSectionReader(f, offset, info.Size()-offset))
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		// drop the partial first line
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxTailBytes)
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			lines = append(lines, string(line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	n := w.TailLines
	if n <= 0 {
		n = 1
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
