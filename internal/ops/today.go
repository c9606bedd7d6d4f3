package ops

import (
	"fmt"
	"time"

	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/notes"
	"github.com/hpungsan/vocap/internal/utterance"
)

// TodayInput contains parameters for the Today operation.
type TodayInput struct {
	Category utterance.Category // defaults to note
	Date     string             // optional YYYY-MM-DD, defaults to today (local time)
}

// Today reads the daily file of a category.
func Today(rt *Runtime, input TodayInput) (*notes.Day, error) {
	store, err := rt.requireStore()
	if err != nil {
		return nil, err
	}

	cat := input.Category
	if cat == "" {
		cat = utterance.CategoryNote
	}
	if !cat.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("category must be 'note' or 'task', got %q", cat))
	}

	day := time.Now()
	if input.Date != "" {
		day, err = time.ParseInLocation("2006-01-02", input.Date, time.Local)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("date must be YYYY-MM-DD, got %q", input.Date))
		}
	}

	return store.ReadDay(cat, day)
}
