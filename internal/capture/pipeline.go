// Package capture runs one raw utterance through classification, dedup and
// the note sink, and reports exactly one outcome.
package capture

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/keylock"
	"github.com/hpungsan/vocap/internal/logging"
	"github.com/hpungsan/vocap/internal/utterance"
)

// Outcome is the terminal state of one capture.
type Outcome string

const (
	OutcomeRecorded       Outcome = "recorded"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeStorageFailure Outcome = "storage_failure"
)

// ReasonEmpty is the ignore reason for text that normalizes to nothing.
const ReasonEmpty = "empty"

// DefaultLedgerTimeout bounds each ledger call when Options leaves it unset.
const DefaultLedgerTimeout = 5 * time.Second

// Ledger is the dedup store the pipeline consults.
type Ledger interface {
	// Observe records an observation and reports whether the fingerprint
	// was already seen within the window.
	Observe(ctx context.Context, fingerprint string, category utterance.Category, at time.Time) (bool, error)
	Forget(ctx context.Context, fingerprint string, at time.Time) error
}

// Sink persists classified utterances.
type Sink interface {
	Append(ctx context.Context, c utterance.Classified) error
}

// Recorder receives per-capture measurements.
type Recorder interface {
	ObserveCapture(outcome, category string, d time.Duration)
}

// Result describes what happened to one raw utterance.
type Result struct {
	Outcome     Outcome            `json:"outcome"`
	Reason      string             `json:"reason,omitempty"`
	Category    utterance.Category `json:"category,omitempty"`
	Content     string             `json:"content,omitempty"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	SourceID    string             `json:"source_id,omitempty"`
	CapturedAt  time.Time          `json:"captured_at"`
	Error       string             `json:"error,omitempty"`
	Err         error              `json:"-"`
}

// Options configures a Pipeline.
type Options struct {
	Matcher *utterance.Matcher
	Ledger  Ledger

	// Sink may be nil, in which case recorded utterances are only deduped.
	Sink Sink

	LedgerTimeout time.Duration
	Logger        *zap.Logger
	Recorder      Recorder

	// Now defaults to time.Now and is used when an utterance has no observation time.
	Now func() time.Time
}

// Pipeline is safe for concurrent use. Captures of the same content are
// serialized so that at most one of them is recorded within the window.
type Pipeline struct {
	matcher  *utterance.Matcher
	ledger   Ledger
	sink     Sink
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	locks    *keylock.Locker
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Matcher == nil {
		return nil, fmt.Errorf("capture: matcher is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("capture: ledger is required")
	}
	p := &Pipeline{
		matcher:  opts.Matcher,
		ledger:   opts.Ledger,
		sink:     opts.Sink,
		timeout:  opts.LedgerTimeout,
		logger:   logging.OrNop(opts.Logger),
		recorder: opts.Recorder,
		now:      opts.Now,
		locks:    keylock.New(),
	}
	if p.timeout <= 0 {
		p.timeout = DefaultLedgerTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Capture classifies raw, checks and updates the ledger, and appends new
// commands to the sink. It never panics and never returns an error: every
// failure becomes OutcomeStorageFailure with Err set.
func (p *Pipeline) Capture(ctx context.Context, raw utterance.Raw) (res Result) {
	start := time.Now()

	if raw.ObservedAt.IsZero() {
		raw.ObservedAt = p.now()
	}
	if raw.SourceID == "" {
		raw.SourceID = utterance.NewSourceID(raw.ObservedAt)
	}
	res = Result{SourceID: raw.SourceID, CapturedAt: raw.ObservedAt}

	// unwritten is set while the ledger holds this observation but the note
	// is not written yet. A panic in that window is undone like a sink error.
	unwritten := false
	defer func() {
		if r := recover(); r != nil {
			if unwritten {
				p.forget(ctx, res.Fingerprint, raw.ObservedAt)
			}
			res.Outcome = OutcomeStorageFailure
			res.Err = errors.NewInternal(fmt.Errorf("capture panic: %v", r))
			res.Error = res.Err.Error()
			p.logger.Error("capture panicked", zap.Any("panic", r), zap.String("source_id", raw.SourceID))
		}
		p.observe(res, time.Since(start))
	}()

	text := p.matcher.Normalizer().Normalize(raw.Text)
	if text == "" {
		res.Outcome, res.Reason = OutcomeIgnored, ReasonEmpty
		return res
	}

	match := p.matcher.Match(text)
	if !match.Matched() {
		res.Outcome, res.Reason = OutcomeIgnored, string(match.Reason)
		p.logger.Debug("utterance ignored", zap.String("reason", res.Reason), zap.String("text", text))
		return res
	}

	res.Category = match.Category
	res.Content = match.Content
	res.Fingerprint = utterance.Fingerprint(match.Content)

	unlock := p.locks.Lock(res.Fingerprint)
	defer unlock()

	// A duplicate observation slides the window forward as well.
	seen, err := p.observeLedger(ctx, res.Fingerprint, res.Category, raw.ObservedAt)
	if err != nil {
		return p.fail(res, err)
	}
	if seen {
		res.Outcome = OutcomeDuplicate
		p.logger.Debug("duplicate suppressed", zap.String("fingerprint", res.Fingerprint))
		return res
	}
	unwritten = true

	if p.sink != nil {
		classified := utterance.Classified{Category: res.Category, Content: res.Content, CapturedAt: raw.ObservedAt}
		if err := p.appendNote(ctx, classified); err != nil {
			p.forget(ctx, res.Fingerprint, raw.ObservedAt)
			return p.fail(res, errors.NewStorageFailure("note append", err))
		}
	}
	unwritten = false

	res.Outcome = OutcomeRecorded
	p.logger.Info("utterance captured",
		zap.String("category", string(res.Category)),
		zap.String("fingerprint", res.Fingerprint),
		zap.String("source_id", res.SourceID),
	)
	return res
}

// appendNote turns a sink panic into an error so the record is undone while
// the key lock is still held.
func (p *Pipeline) appendNote(ctx context.Context, c utterance.Classified) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("note sink panic: %v", r)
		}
	}()
	return p.sink.Append(ctx, c)
}

func (p *Pipeline) observeLedger(ctx context.Context, fp string, cat utterance.Category, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.ledger.Observe(ctx, fp, cat, at)
}

// forget undoes a record after the sink failed, so a retry is not a duplicate.
// It runs even if the caller's context is already cancelled.
func (p *Pipeline) forget(ctx context.Context, fp string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.ledger.Forget(ctx, fp, at); err != nil {
		p.logger.Error("ledger forget failed", zap.String("fingerprint", fp), zap.Error(err))
	}
}

func (p *Pipeline) fail(res Result, err error) Result {
	if !errors.Is(err, errors.ErrStorageFailure) {
		err = errors.NewStorageFailure("ledger", err)
	}
	res.Outcome = OutcomeStorageFailure
	res.Err = err
	res.Error = err.Error()
	p.logger.Error("capture failed",
		zap.String("fingerprint", res.Fingerprint),
		zap.String("source_id", res.SourceID),
		zap.Error(err),
	)
	return res
}

func (p *Pipeline) observe(res Result, d time.Duration) {
	if p.recorder != nil {
		p.recorder.ObserveCapture(string(res.Outcome), string(res.Category), d)
	}
}
