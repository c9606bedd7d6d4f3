// Package utterance turns noisy transcript strings into note/task commands.
//
// The pipeline is Normalize -> Matcher.Match -> Fingerprint. All three are
// pure: no I/O, no clocks, no shared mutable state after construction.
package utterance

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Category is the kind of command an utterance carries.
type Category string

const (
	CategoryNote Category = "note"
	CategoryTask Category = "task"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryNote || c == CategoryTask
}

// Raw is one transcript string as observed by a message source.
type Raw struct {
	Text       string
	ObservedAt time.Time
	SourceID   string
}

// NewRaw creates a Raw with a fresh ULID source ID.
func NewRaw(text string, observedAt time.Time) Raw {
	return Raw{
		Text:       text,
		ObservedAt: observedAt,
		SourceID:   NewSourceID(observedAt),
	}
}

// NewSourceID returns a ULID string ordered by observation time.
func NewSourceID(at time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// Classified is an utterance that matched a trigger pattern.
// Content is never empty and never the matched keyword itself.
type Classified struct {
	Category   Category
	Content    string
	CapturedAt time.Time
}
