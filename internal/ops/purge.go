package ops

import (
	"context"
	"fmt"
	"time"
)

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int64  `json:"purged"`
	Window  string `json:"window"`
	Message string `json:"message"`
}

// Purge permanently deletes ledger entries that fell out of the dedup window.
func Purge(ctx context.Context, rt *Runtime) (*PurgeOutput, error) {
	count, err := rt.Ledger.PurgeExpired(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Window:  rt.Ledger.Window().String(),
		Message: formatPurgeMessage(count, rt.Ledger.Window()),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int64, window time.Duration) string {
	if count == 0 {
		return "No expired ledger entries to purge"
	}

	entryWord := "entry"
	if count > 1 {
		entryWord = "entries"
	}

	return fmt.Sprintf("Removed %d expired ledger %s (not seen within %s)", count, entryWord, window)
}
