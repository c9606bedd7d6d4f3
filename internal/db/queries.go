package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/vocap/internal/errors"
)

// Entry is one row of the dedup ledger. Times are Unix seconds.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	Category    string `json:"category"`
	FirstSeenAt int64  `json:"first_seen_at"`
	LastSeenAt  int64  `json:"last_seen_at"`
	Hits        int64  `json:"hits"`
}

// Summary aggregates the ledger table.
type Summary struct {
	Entries    int64            `json:"entries"`
	ByCategory map[string]int64 `json:"by_category"`
	Oldest     int64            `json:"oldest,omitempty"`
	Newest     int64            `json:"newest,omitempty"`
}

// GetEntry retrieves a ledger entry by fingerprint.
func GetEntry(ctx context.Context, db *sql.DB, fingerprint string) (*Entry, error) {
	query := `
		SELECT fingerprint, category, first_seen_at, last_seen_at, hits
		FROM ledger
		WHERE fingerprint = ?
	`

	var e Entry
	err := db.QueryRowContext(ctx, query, fingerprint).Scan(
		&e.Fingerprint, &e.Category, &e.FirstSeenAt, &e.LastSeenAt, &e.Hits,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(fingerprint)
	}
	if err != nil {
		return nil, errors.NewStorageFailure("ledger get", err)
	}
	return &e, nil
}

// LastSeen returns the last observation time of a fingerprint, or ok=false
// when it has never been recorded.
func LastSeen(ctx context.Context, db *sql.DB, fingerprint string) (int64, bool, error) {
	var lastSeen int64
	err := db.QueryRowContext(ctx, `SELECT last_seen_at FROM ledger WHERE fingerprint = ?`, fingerprint).Scan(&lastSeen)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.NewStorageFailure("ledger lookup", err)
	}
	return lastSeen, true, nil
}

// upsertEntryQuery inserts a new row with one hit, or slides last_seen_at
// forward and counts the hit. A row whose last observation is older than the
// cutoff restarts as a fresh entry.
const upsertEntryQuery = `
	INSERT INTO ledger (fingerprint, category, first_seen_at, last_seen_at, hits)
	VALUES (?, ?, ?, ?, 1)
	ON CONFLICT(fingerprint) DO UPDATE SET
		category      = CASE WHEN ledger.last_seen_at < ? THEN excluded.category ELSE ledger.category END,
		first_seen_at = CASE WHEN ledger.last_seen_at < ? THEN excluded.first_seen_at ELSE ledger.first_seen_at END,
		hits          = CASE WHEN ledger.last_seen_at < ? THEN 1 ELSE ledger.hits + 1 END,
		last_seen_at  = MAX(ledger.last_seen_at, excluded.last_seen_at)
`

// UpsertEntry records an observation. Entries last observed before
// expiredBefore restart as fresh entries.
func UpsertEntry(ctx context.Context, db *sql.DB, fingerprint, category string, at, expiredBefore int64) error {
	_, err := db.ExecContext(ctx, upsertEntryQuery,
		fingerprint, category, at, at,
		expiredBefore, expiredBefore, expiredBefore,
	)
	if err != nil {
		return errors.NewStorageFailure("ledger record", err)
	}
	return nil
}

// ObserveEntry checks and records an observation in one transaction and
// reports whether the fingerprint was last seen at or after cutoff. The
// connection opens transactions with BEGIN IMMEDIATE, so processes sharing
// the database file cannot both see the fingerprint as new.
func ObserveEntry(ctx context.Context, db *sql.DB, fingerprint, category string, at, cutoff int64) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.NewStorageFailure("ledger observe", err)
	}
	defer func() { _ = tx.Rollback() }()

	seen := false
	var lastSeen int64
	err = tx.QueryRowContext(ctx, `SELECT last_seen_at FROM ledger WHERE fingerprint = ?`, fingerprint).Scan(&lastSeen)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return false, errors.NewStorageFailure("ledger observe", err)
	default:
		seen = lastSeen >= cutoff
	}

	if _, err := tx.ExecContext(ctx, upsertEntryQuery,
		fingerprint, category, at, at,
		cutoff, cutoff, cutoff,
	); err != nil {
		return false, errors.NewStorageFailure("ledger observe", err)
	}
	if err := tx.Commit(); err != nil {
		return false, errors.NewStorageFailure("ledger observe", err)
	}
	return seen, nil
}

// DeleteEntry removes a fingerprint only if its last observation is still
// lastSeenAt, so a newer observation is never undone.
func DeleteEntry(ctx context.Context, db *sql.DB, fingerprint string, lastSeenAt int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM ledger WHERE fingerprint = ? AND last_seen_at = ?`,
		fingerprint, lastSeenAt,
	)
	if err != nil {
		return false, errors.NewStorageFailure("ledger forget", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewStorageFailure("ledger forget", err)
	}
	return n > 0, nil
}

// DeleteExpired removes entries last observed before cutoff.
// Returns the number of entries removed.
func DeleteExpired(ctx context.Context, db *sql.DB, cutoff int64) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM ledger WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, errors.NewStorageFailure("ledger purge", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewStorageFailure("ledger purge", err)
	}
	return n, nil
}

// Summarize counts entries overall and per category.
func Summarize(ctx context.Context, db *sql.DB) (*Summary, error) {
	s := &Summary{ByCategory: map[string]int64{}}

	var oldest, newest sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(first_seen_at), MAX(last_seen_at) FROM ledger`,
	).Scan(&s.Entries, &oldest, &newest)
	if err != nil {
		return nil, errors.NewStorageFailure("ledger stats", err)
	}
	s.Oldest = oldest.Int64
	s.Newest = newest.Int64

	rows, err := db.QueryContext(ctx, `SELECT category, COUNT(*) FROM ledger GROUP BY category`)
	if err != nil {
		return nil, errors.NewStorageFailure("ledger stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, errors.NewStorageFailure("ledger stats", err)
		}
		s.ByCategory[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageFailure("ledger stats", err)
	}
	return s, nil
}

// ListRecent returns entries ordered by last observation, newest first.
func ListRecent(ctx context.Context, db *sql.DB, limit int) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT fingerprint, category, first_seen_at, last_seen_at, hits
		FROM ledger
		ORDER BY last_seen_at DESC, fingerprint
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewStorageFailure("ledger list", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Fingerprint, &e.Category, &e.FirstSeenAt, &e.LastSeenAt, &e.Hits); err != nil {
			return nil, errors.NewStorageFailure("ledger list", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageFailure("ledger list", err)
	}
	return entries, nil
}
