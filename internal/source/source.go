// Package source adapts transcript feeds into raw utterances.
package source

import (
	"context"

	"github.com/hpungsan/vocap/internal/utterance"
)

// Source emits raw utterances until ctx is cancelled. Run returns nil on
// cancellation and an error only when the source cannot continue.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- utterance.Raw) error
}

// emit sends every text extracted from payload, stopping early on cancellation.
func emit(ctx context.Context, out chan<- utterance.Raw, payload string, newRaw func(string) utterance.Raw) bool {
	for _, text := range Extract(payload) {
		select {
		case out <- newRaw(text):
		case <-ctx.Done():
			return false
		}
	}
	return true
}
