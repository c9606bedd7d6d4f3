package ops

import (
	"context"

	"github.com/hpungsan/vocap/internal/db"
)

// LedgerStatsInput contains parameters for the LedgerStats operation.
type LedgerStatsInput struct {
	Limit *int // optional, number of recent entries (default 20, max 100)
}

// LedgerStatsOutput summarizes the dedup ledger.
type LedgerStatsOutput struct {
	Window string     `json:"window"`
	Stats  db.Summary `json:"stats"`
	Recent []db.Entry `json:"recent"`
}

// LedgerStats returns counts and the most recently observed entries.
func LedgerStats(ctx context.Context, rt *Runtime, input LedgerStatsInput) (*LedgerStatsOutput, error) {
	limit, err := clampLimit(input.Limit, DefaultRecentLimit, MaxRecentLimit)
	if err != nil {
		return nil, err
	}

	summary, err := rt.Ledger.Stats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := rt.Ledger.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	return &LedgerStatsOutput{
		Window: rt.Ledger.Window().String(),
		Stats:  *summary,
		Recent: recent,
	}, nil
}
