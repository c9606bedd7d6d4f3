package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/utterance"
)

func TestLedgerStats(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	now := time.Now()

	fps := []string{"1111111111111111", "2222222222222222", "3333333333333333"}
	for i, fp := range fps {
		cat := utterance.CategoryNote
		if i == 2 {
			cat = utterance.CategoryTask
		}
		if err := rt.Ledger.Record(ctx, fp, cat, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	limit := 2
	out, err := LedgerStats(ctx, rt, LedgerStatsInput{Limit: &limit})
	if err != nil {
		t.Fatalf("LedgerStats failed: %v", err)
	}
	if out.Stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", out.Stats.Entries)
	}
	if out.Stats.ByCategory["note"] != 2 || out.Stats.ByCategory["task"] != 1 {
		t.Errorf("ByCategory = %v", out.Stats.ByCategory)
	}
	if len(out.Recent) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(out.Recent))
	}
	if out.Recent[0].Fingerprint != fps[2] {
		t.Errorf("Recent[0] = %q, want newest %q", out.Recent[0].Fingerprint, fps[2])
	}
}

func TestLedgerStats_Empty(t *testing.T) {
	rt := newTestRuntime(t)

	out, err := LedgerStats(context.Background(), rt, LedgerStatsInput{})
	if err != nil {
		t.Fatalf("LedgerStats failed: %v", err)
	}
	if out.Stats.Entries != 0 || len(out.Recent) != 0 {
		t.Errorf("LedgerStats = %+v, want empty", out)
	}
	if out.Recent == nil {
		t.Error("Recent should be an empty slice, not nil")
	}
}

func TestLedgerStats_InvalidLimit(t *testing.T) {
	rt := newTestRuntime(t)

	limit := 0
	_, err := LedgerStats(context.Background(), rt, LedgerStatsInput{Limit: &limit})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("LedgerStats error = %v, want INVALID_REQUEST", err)
	}
}
