package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tweetsweep/pkg/observability"
)

var (
	// ErrRunAborted is returned when the run stopped on an unrecoverable
	// remote condition. Everything done so far is in the ledger.
	ErrRunAborted = errors.New("purge run aborted")
	// ErrInterrupted is returned when the run context was cancelled.
	ErrInterrupted = errors.New("purge run interrupted")
)

// DefaultPreviewLimit is the number of items shown by a dry run.
const DefaultPreviewLimit = 20

// Options control a single run.
type Options struct {
	DryRun       bool
	SkipConfirm  bool
	PreviewLimit int
}

// Report summarises a run.
type Report struct {
	Candidates     int
	AlreadyDeleted int
	Attempted      int
	Deleted        int
	AlreadyGone    int
	RateLimited    int
	Failed         int
	Pauses         int
	DryRun         bool
	Cancelled      bool
	Aborted        bool
	Interrupted    bool
	AbortReason    string
	Preview        []domain.Item
}

// Orchestrator deletes candidate items one at a time, consulting the ledger
// to skip finished work and the governor to stay inside the rate window.
type Orchestrator struct {
	deleter   Deleter
	ledger    Ledger
	governor  *RateGovernor
	confirmer Confirmer
	metrics   observability.Metrics
	events    eventEmitter
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. The confirmer may be nil only if
// every run uses SkipConfirm or DryRun.
func NewOrchestrator(deleter Deleter, ledger Ledger, governor *RateGovernor, confirmer Confirmer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		deleter:   deleter,
		ledger:    ledger,
		governor:  governor,
		confirmer: confirmer,
		metrics:   observability.NoopMetrics{},
		logger:    logger,
		now:       time.Now,
	}
	o.events = eventEmitter{logger: logger, now: o.now}
	return o
}

// WithPublisher publishes purge events through p.
func (o *Orchestrator) WithPublisher(p eventbus.Publisher) *Orchestrator {
	o.events.publisher = p
	return o
}

// WithMetrics records run metrics into m.
func (o *Orchestrator) WithMetrics(m observability.Metrics) *Orchestrator {
	if m != nil {
		o.metrics = m
	}
	return o
}

// WithClock replaces the clock used for ledger timestamps.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	if now != nil {
		o.now = now
		o.events.now = now
	}
	return o
}

// Run processes items. A non-nil error wrapping ErrRunAborted or
// ErrInterrupted still comes with a populated report.
func (o *Orchestrator) Run(ctx context.Context, items []domain.Item, opts Options) (*Report, error) {
	items = domain.Dedupe(items)
	report := &Report{Candidates: len(items)}

	if len(items) == 0 {
		o.logger.InfoContext(ctx, "no items to delete")
		return report, nil
	}

	if opts.DryRun {
		limit := opts.PreviewLimit
		if limit <= 0 {
			limit = DefaultPreviewLimit
		}
		report.DryRun = true
		report.Preview = items[:min(limit, len(items))]
		o.logger.InfoContext(ctx, "dry run", "would_delete", len(items))
		return report, nil
	}

	if !opts.SkipConfirm {
		if o.confirmer == nil {
			return report, errors.New("confirmation required but no confirmer configured")
		}
		ok, err := o.confirmer.Confirm(ctx, fmt.Sprintf("WARNING: About to permanently delete %d tweets!", len(items)))
		if err != nil {
			return report, fmt.Errorf("confirmation: %w", err)
		}
		if !ok {
			report.Cancelled = true
			o.logger.InfoContext(ctx, "run cancelled at confirmation")
			return report, nil
		}
	}

	known, err := o.ledger.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load ledger: %w", err)
	}

	remaining := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if _, done := known[item.ID]; done {
			report.AlreadyDeleted++
			continue
		}
		remaining = append(remaining, item)
	}
	if report.AlreadyDeleted > 0 {
		o.metrics.Counter(observability.MetricSkipped, int64(report.AlreadyDeleted))
		o.logger.InfoContext(ctx, "skipping items deleted by previous runs", "count", report.AlreadyDeleted)
	}
	if len(remaining) == 0 {
		o.logger.InfoContext(ctx, "all items already deleted")
		return report, nil
	}

	total := len(remaining)
	o.logger.InfoContext(ctx, "deleting items", "count", total)

	for i, item := range remaining {
		if err := ctx.Err(); err != nil {
			return o.interrupt(ctx, report, err)
		}
		log := o.logger.With("id", item.ID, "index", i+1, "total", total)

		outcome, callErr := o.attempt(ctx, report, item)
		if callErr != nil && ctx.Err() != nil {
			return o.interrupt(ctx, report, ctx.Err())
		}
		if outcome == OutcomeRateLimited {
			report.RateLimited++
			o.metrics.Counter(observability.MetricRateLimited, 1)
			log.WarnContext(ctx, "rate limited, waiting for window", "wait", o.governor.PauseDuration().String())
			if err := o.flush(ctx); err != nil {
				return report, err
			}
			if err := o.pause(ctx, report, o.governor.Wait); err != nil {
				return o.interrupt(ctx, report, err)
			}
			outcome, callErr = o.attempt(ctx, report, item)
			if callErr != nil && ctx.Err() != nil {
				return o.interrupt(ctx, report, ctx.Err())
			}
			if outcome == OutcomeRateLimited {
				outcome = OutcomeFailed
			}
		}

		switch outcome {
		case OutcomeSuccess, OutcomeNotFound:
			if err := o.record(ctx, report, item, outcome); err != nil {
				return report, err
			}
			if outcome == OutcomeNotFound {
				log.InfoContext(ctx, "already deleted or not found")
			} else {
				log.InfoContext(ctx, "deleted", "text", item.Preview(60))
			}
		case OutcomeQuotaExhausted, OutcomeUnavailable:
			log.ErrorContext(ctx, "stopping run", "outcome", outcome.String(), "error", callErr)
			return o.abort(ctx, report, callErr)
		default:
			report.Failed++
			o.metrics.Counter(observability.MetricFailed, 1)
			log.WarnContext(ctx, "delete failed", "error", callErr)
		}

		if o.governor.ShouldPause() && i < total-1 {
			log.InfoContext(ctx, "approaching rate limit, pausing", "calls", o.governor.Calls())
			if err := o.flush(ctx); err != nil {
				return report, err
			}
			if err := o.pause(ctx, report, o.governor.Pause); err != nil {
				return o.interrupt(ctx, report, err)
			}
		}
	}

	if err := o.flush(ctx); err != nil {
		return report, err
	}
	o.events.emit(ctx, observability.RunIDFromContext(ctx), EventRunCompleted, map[string]int{
		"deleted": report.Deleted,
		"failed":  report.Failed,
		"skipped": report.AlreadyDeleted,
	})
	o.logger.InfoContext(ctx, "run complete",
		"deleted", report.Deleted,
		"already_gone", report.AlreadyGone,
		"failed", report.Failed,
		"pauses", report.Pauses,
	)
	return report, nil
}

// attempt issues one delete call and classifies the result.
func (o *Orchestrator) attempt(ctx context.Context, report *Report, item domain.Item) (Outcome, error) {
	timer := observability.StartTimer(observability.MetricDeleteCall).WithMetrics(o.metrics)
	err := o.deleter.DeleteItem(ctx, item.ID)
	timer.Stop()

	o.governor.Record()
	report.Attempted++
	return Classify(err), err
}

// record appends the ledger entry and flushes it before the next call. A
// delete the remote side accepted is recorded even if ctx was cancelled
// while the call was in flight.
func (o *Orchestrator) record(ctx context.Context, report *Report, item domain.Item, outcome Outcome) error {
	entry := domain.NewLedgerEntry(item, o.now())
	if err := o.ledger.Append(context.WithoutCancel(ctx), entry); err != nil {
		return fmt.Errorf("append ledger entry %s: %w", item.ID, err)
	}
	if err := o.flush(ctx); err != nil {
		return err
	}

	report.Deleted++
	o.metrics.Counter(observability.MetricDeleted, 1)
	if outcome == OutcomeNotFound {
		report.AlreadyGone++
		o.metrics.Counter(observability.MetricAlreadyGone, 1)
	}
	o.events.emit(ctx, observability.RunIDFromContext(ctx), EventItemDeleted, entry)
	return nil
}

func (o *Orchestrator) pause(ctx context.Context, report *Report, block func(context.Context) error) error {
	if err := block(ctx); err != nil {
		return err
	}
	report.Pauses++
	o.metrics.Counter(observability.MetricPauses, 1)
	return nil
}

// flush survives a cancelled run context so an interrupted run still
// persists its progress.
func (o *Orchestrator) flush(ctx context.Context) error {
	if err := o.ledger.Flush(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

func (o *Orchestrator) abort(ctx context.Context, report *Report, cause error) (*Report, error) {
	report.Aborted = true
	if cause != nil {
		report.AbortReason = cause.Error()
	}
	if err := o.flush(ctx); err != nil {
		return report, errors.Join(fmt.Errorf("%w: %w", ErrRunAborted, cause), err)
	}
	o.events.emit(ctx, observability.RunIDFromContext(ctx), EventRunAborted, map[string]any{
		"reason":  report.AbortReason,
		"deleted": report.Deleted,
	})
	return report, fmt.Errorf("%w: %w", ErrRunAborted, cause)
}

func (o *Orchestrator) interrupt(ctx context.Context, report *Report, cause error) (*Report, error) {
	report.Interrupted = true
	if err := o.flush(ctx); err != nil {
		return report, errors.Join(fmt.Errorf("%w: %w", ErrInterrupted, cause), err)
	}
	o.logger.WarnContext(ctx, "run interrupted, progress saved", "deleted", report.Deleted)
	return report, fmt.Errorf("%w: %w", ErrInterrupted, cause)
}
