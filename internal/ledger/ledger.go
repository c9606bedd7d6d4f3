// Package ledger is the persistent dedup ledger: fingerprint -> last observation.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/vocap/internal/db"
	"github.com/hpungsan/vocap/internal/utterance"
)

// Ledger remembers fingerprints for a retention window. Observations slide
// the window forward, so content repeated inside the window stays suppressed.
// Safe for concurrent use; SQLite serializes writers.
type Ledger struct {
	db     *sql.DB
	window time.Duration
}

// New creates a ledger over an initialized database.
func New(database *sql.DB, window time.Duration) *Ledger {
	return &Ledger{db: database, window: window}
}

// Window returns the retention window.
func (l *Ledger) Window() time.Duration {
	return l.window
}

// SeenRecently reports whether fingerprint was observed within the window
// ending at now.
func (l *Ledger) SeenRecently(ctx context.Context, fingerprint string, now time.Time) (bool, error) {
	lastSeen, ok, err := db.LastSeen(ctx, l.db, fingerprint)
	if err != nil || !ok {
		return false, err
	}
	return lastSeen >= l.cutoff(now), nil
}

// Record stores an observation of fingerprint at the given time.
func (l *Ledger) Record(ctx context.Context, fingerprint string, category utterance.Category, at time.Time) error {
	return db.UpsertEntry(ctx, l.db, fingerprint, string(category), at.Unix(), l.cutoff(at))
}

// Observe records an observation of fingerprint at the given time and
// reports whether it had already been seen within the window. The check and
// the record happen in one transaction.
func (l *Ledger) Observe(ctx context.Context, fingerprint string, category utterance.Category, at time.Time) (bool, error) {
	return db.ObserveEntry(ctx, l.db, fingerprint, string(category), at.Unix(), l.cutoff(at))
}

// Forget undoes a Record made at the given time. A later observation of the
// same fingerprint is left in place.
func (l *Ledger) Forget(ctx context.Context, fingerprint string, at time.Time) error {
	_, err := db.DeleteEntry(ctx, l.db, fingerprint, at.Unix())
	return err
}

// PurgeExpired removes entries whose last observation fell out of the window.
// Returns the number of entries removed.
func (l *Ledger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return db.DeleteExpired(ctx, l.db, l.cutoff(now))
}

// Stats summarizes the ledger contents.
func (l *Ledger) Stats(ctx context.Context) (*db.Summary, error) {
	return db.Summarize(ctx, l.db)
}

// Recent lists the most recently observed entries.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]db.Entry, error) {
	return db.ListRecent(ctx, l.db, limit)
}

func (l *Ledger) cutoff(now time.Time) int64 {
	return now.Add(-l.window).Unix()
}
