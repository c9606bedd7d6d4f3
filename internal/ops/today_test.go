package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/vocap/internal/config"
	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/utterance"
)

func TestToday_AfterCapture(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	for _, text := range []string{"take a note buy milk", "add a task pay rent", "add a task call mom"} {
		if _, err := Capture(ctx, rt, CaptureInput{Text: text}); err != nil {
			t.Fatalf("Capture(%q) failed: %v", text, err)
		}
	}

	notesDay, err := Today(rt, TodayInput{})
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if notesDay.Category != utterance.CategoryNote || len(notesDay.Entries) != 1 {
		t.Fatalf("notes = %+v, want one note", notesDay)
	}
	if notesDay.Entries[0].Content != "buy milk" || notesDay.Entries[0].Time == "" {
		t.Errorf("note entry = %+v", notesDay.Entries[0])
	}

	tasksDay, err := Today(rt, TodayInput{Category: utterance.CategoryTask})
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if len(tasksDay.Entries) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasksDay.Entries))
	}
	if !tasksDay.Entries[0].Task || tasksDay.Entries[0].Done {
		t.Errorf("task entry = %+v, want open task", tasksDay.Entries[0])
	}
}

func TestToday_OtherDate(t *testing.T) {
	rt := newTestRuntime(t)

	day, err := Today(rt, TodayInput{Date: "2024-01-15"})
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if day.Date != "2024-01-15" || day.Exists {
		t.Errorf("Today = %+v, want missing 2024-01-15", day)
	}
}

func TestToday_Invalid(t *testing.T) {
	rt := newTestRuntime(t)

	if _, err := Today(rt, TodayInput{Date: "15/01/2024"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad date error = %v, want INVALID_REQUEST", err)
	}
	if _, err := Today(rt, TodayInput{Category: "memo"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad category error = %v, want INVALID_REQUEST", err)
	}

	noVault, err := Open(t.TempDir(), config.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer noVault.Close()
	if _, err := Today(noVault, TodayInput{}); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("no vault error = %v, want INVALID_CONFIG", err)
	}
}
