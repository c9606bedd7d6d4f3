// Package notes appends classified utterances to daily Markdown files in a
// notes vault and reads them back.
package notes

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/keylock"
	"github.com/hpungsan/vocap/internal/utterance"
)

// MaxConcurrentWrites caps simultaneous file appends across all daily files.
const MaxConcurrentWrites = 5

// Store writes notes to <vault>/<notesDir>/YYYY-MM-DD.md and tasks to
// <vault>/<tasksDir>/YYYY-MM-DD.md. Appends to one file are serialized so
// lines stay in arrival order.
type Store struct {
	vault    string
	notesDir string
	tasksDir string

	sem   *semaphore.Weighted
	files *keylock.Locker
}

// NewStore creates a Store rooted at vault.
func NewStore(vault, notesDir, tasksDir string) *Store {
	return &Store{
		vault:    vault,
		notesDir: notesDir,
		tasksDir: tasksDir,
		sem:      semaphore.NewWeighted(MaxConcurrentWrites),
		files:    keylock.New(),
	}
}

// DailyPath returns the file a category is written to on the given day
// (local time).
func (s *Store) DailyPath(cat utterance.Category, day time.Time) string {
	dir := s.notesDir
	if cat == utterance.CategoryTask {
		dir = s.tasksDir
	}
	return filepath.Join(s.vault, dir, day.Local().Format("2006-01-02")+".md")
}

// FormatLine renders one Markdown list line, including the trailing newline.
// Notes carry their capture time; tasks are unchecked checkboxes.
func FormatLine(c utterance.Classified) string {
	content := strings.Join(strings.Fields(c.Content), " ")
	if c.Category == utterance.CategoryTask {
		return "- [ ] " + content + "\n"
	}
	return "- [" + c.CapturedAt.Local().Format("15:04") + "] " + content + "\n"
}

// Append writes c to its daily file, creating directories as needed.
func (s *Store) Append(ctx context.Context, c utterance.Classified) error {
	if !c.Category.Valid() {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown category %q", c.Category))
	}
	if strings.TrimSpace(c.Content) == "" {
		return errors.NewInvalidRequest("content must not be empty")
	}
	if c.CapturedAt.IsZero() {
		c.CapturedAt = time.Now()
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	path := s.DailyPath(c.Category, c.CapturedAt)
	unlock := s.files.Lock(path)
	defer unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create note directory: %w", err)
	}
	if err := checkInsideVault(s.vault, dir); err != nil {
		return err
	}

	f, err := openAppendNoFollow(path)
	if err != nil {
		return fmt.Errorf("failed to open daily file: %w", err)
	}

	line := FormatLine(c)
	missing, err := missingTrailingNewline(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to inspect daily file: %w", err)
	}
	if missing {
		line = "\n" + line
	}

	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to daily file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close daily file: %w", err)
	}
	return nil
}

// missingTrailingNewline reports whether a non-empty file lacks a final newline,
// as happens when the file was last edited by hand.
func missingTrailingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil && err != io.EOF {
		return false, err
	}
	return buf[0] != '\n', nil
}

// checkInsideVault rejects a note directory that resolves outside the vault,
// e.g. through a symlinked subdirectory.
func checkInsideVault(vault, dir string) error {
	realVault, err := filepath.EvalSymlinks(vault)
	if err != nil {
		return fmt.Errorf("failed to resolve vault: %w", err)
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve note directory: %w", err)
	}
	rel, err := filepath.Rel(realVault, realDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.NewInvalidRequest("note directory must stay inside the vault")
	}
	return nil
}
