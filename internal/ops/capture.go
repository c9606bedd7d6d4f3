package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/vocap/internal/capture"
	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/source"
	"github.com/hpungsan/vocap/internal/utterance"
)

// CaptureInput contains parameters for the Capture operation.
type CaptureInput struct {
	// Text is a plain utterance, several lines, or a JSON payload.
	Text string
	// SourceID is optional; a ULID is generated when empty.
	SourceID string
}

// CaptureOutput contains the result of the Capture operation.
type CaptureOutput struct {
	Results  []capture.Result `json:"results"`
	Recorded int              `json:"recorded"`
}

// Capture runs every text in the input through the capture pipeline.
// A storage failure in any of them is returned as the error; retrying the
// whole input is safe because recorded texts come back as duplicates.
func Capture(ctx context.Context, rt *Runtime, input CaptureInput) (*CaptureOutput, error) {
	if _, err := rt.requireStore(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	texts := source.Extract(input.Text)
	if len(texts) == 0 {
		return nil, errors.NewInvalidRequest("no text found in input")
	}

	out := &CaptureOutput{Results: make([]capture.Result, 0, len(texts))}
	for i, text := range texts {
		raw := utterance.Raw{Text: text, SourceID: input.SourceID}
		if input.SourceID != "" && len(texts) > 1 {
			raw.SourceID = fmt.Sprintf("%s-%d", input.SourceID, i)
		}

		res := rt.Pipeline.Capture(ctx, raw)
		if res.Outcome == capture.OutcomeStorageFailure {
			return nil, res.Err
		}
		if res.Outcome == capture.OutcomeRecorded {
			out.Recorded++
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
