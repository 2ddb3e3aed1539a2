package poller

import (
	"context"
	"log/slog"
	"time"

	"payment-reconciler/internal/client"
	"payment-reconciler/internal/config"
	"payment-reconciler/internal/payload"
	"payment-reconciler/internal/retry"

	"github.com/VictoriaMetrics/metrics"
)

const (
	defaultSettleDelayMs      = 5_000
	defaultIntervalMs         = 10_000
	defaultMaxAttempts        = 12
	defaultQueryRetryAttempts = 2
	defaultQueryRetryDelayMs  = 2_000
)

var (
	pollCompletedCounter = metrics.GetOrCreateCounter(`payment_poll_total{result="completed"}`)
	pollFailedCounter    = metrics.GetOrCreateCounter(`payment_poll_total{result="failed"}`)
	pollTimedOutCounter  = metrics.GetOrCreateCounter(`payment_poll_total{result="timed_out"}`)
	pollCancelledCounter = metrics.GetOrCreateCounter(`payment_poll_total{result="cancelled"}`)

	pollQueryFailureCounter = metrics.GetOrCreateCounter(`payment_poll_query_failures_total`)
	pollMarkFailedErrors    = metrics.GetOrCreateCounter(`payment_poll_mark_failed_errors_total`)

	pollDurationHistogram = metrics.GetOrCreateHistogram(`payment_poll_duration_milliseconds`)
)

// Outcome is the poller's terminal verdict on a payment.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeTimedOut is synthesized locally when the attempt budget runs out
	// while the status is still in flight.
	OutcomeTimedOut Outcome = "timed_out"
)

// Result carries the verdict plus what was last observed, for journaling.
type Result struct {
	Outcome    Outcome
	LastStatus string
	Attempts   int
}

type Config struct {
	// SettleDelay runs once before the first query so the gateway has time to
	// register the transaction.
	SettleDelay time.Duration
	// Interval separates a query's completion from the next query.
	Interval    time.Duration
	MaxAttempts int
	// QueryRetry smooths transient failures of a single status query; its
	// exhaustion consumes one polling attempt, it does not end the poll.
	QueryRetry retry.Options
	// MarkFailedRetry bounds the best-effort record update to Failed.
	MarkFailedRetry retry.Options
}

func DefaultConfig() Config {
	return Config{
		SettleDelay: defaultSettleDelayMs * time.Millisecond,
		Interval:    defaultIntervalMs * time.Millisecond,
		MaxAttempts: defaultMaxAttempts,
		QueryRetry: retry.Options{
			MaxAttempts: defaultQueryRetryAttempts,
			Delay:       defaultQueryRetryDelayMs * time.Millisecond,
			Backoff:     false,
		},
		MarkFailedRetry: retry.Defaults(),
	}
}

// ConfigFrom maps the yaml poller section onto a Config, keeping defaults for
// anything unset.
func ConfigFrom(cfg config.Poller) Config {
	out := DefaultConfig()
	if cfg.SettleDelayMs > 0 {
		out.SettleDelay = time.Duration(cfg.SettleDelayMs) * time.Millisecond
	}
	if cfg.IntervalMs > 0 {
		out.Interval = time.Duration(cfg.IntervalMs) * time.Millisecond
	}
	if cfg.MaxAttempts > 0 {
		out.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.QueryRetryAttempts > 0 {
		out.QueryRetry.MaxAttempts = cfg.QueryRetryAttempts
	}
	if cfg.QueryRetryDelayMs > 0 {
		out.QueryRetry.Delay = time.Duration(cfg.QueryRetryDelayMs) * time.Millisecond
	}
	return out
}

// Poller drives the confirmation state machine for one payment: delayed
// first query, fixed interval between queries, bounded attempts. Queries for
// a single payment are never issued concurrently.
type Poller struct {
	payments *client.PaymentsClient
	cfg      Config
	logger   *slog.Logger
}

func New(payments *client.PaymentsClient, cfg Config, logger *slog.Logger) *Poller {
	return &Poller{payments: payments, cfg: cfg, logger: logger}
}

// PollUntilTerminal queries the payment status until it reaches a terminal
// class or the attempt budget is exhausted. Context cancellation stops the
// poll at the next boundary; an update already sent server-side may still
// land.
func (p *Poller) PollUntilTerminal(ctx context.Context, paymentID int64) (*Result, error) {
	start := time.Now()

	if err := retry.Sleep(ctx, p.cfg.SettleDelay); err != nil {
		pollCancelledCounter.Inc()
		return nil, err
	}

	lastStatus := ""
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		record, err := retry.Do(ctx, func(ctx context.Context) (*payload.PaymentRecord, error) {
			return p.payments.GetByID(ctx, paymentID)
		}, p.cfg.QueryRetry)

		if err != nil {
			if ctx.Err() != nil {
				pollCancelledCounter.Inc()
				return nil, ctx.Err()
			}
			// One polling attempt spent; scheduling continues as normal.
			p.logger.WarnContext(ctx, "Status query failed", "paymentId", paymentID, "attempt", attempt, "error", err)
			pollQueryFailureCounter.Inc()
		} else {
			lastStatus = record.PaymentStatus
			switch payload.ClassifyStatus(record.PaymentStatus) {
			case payload.StatusSuccess:
				p.logger.InfoContext(ctx, "Payment completed", "paymentId", paymentID, "attempt", attempt, "status", record.PaymentStatus)
				pollCompletedCounter.Inc()
				pollDurationHistogram.Update(float64(time.Since(start).Milliseconds()))
				return &Result{Outcome: OutcomeCompleted, LastStatus: lastStatus, Attempts: attempt}, nil
			case payload.StatusFailure:
				p.logger.InfoContext(ctx, "Payment failed", "paymentId", paymentID, "attempt", attempt, "status", record.PaymentStatus)
				p.markFailed(ctx, paymentID)
				pollFailedCounter.Inc()
				pollDurationHistogram.Update(float64(time.Since(start).Milliseconds()))
				return &Result{Outcome: OutcomeFailed, LastStatus: lastStatus, Attempts: attempt}, nil
			}
			p.logger.InfoContext(ctx, "Payment still in flight", "paymentId", paymentID, "attempt", attempt, "status", record.PaymentStatus)
		}

		if attempt < p.cfg.MaxAttempts {
			if err := retry.Sleep(ctx, p.cfg.Interval); err != nil {
				pollCancelledCounter.Inc()
				return nil, err
			}
		}
	}

	p.logger.WarnContext(ctx, "Poll attempt budget exhausted", "paymentId", paymentID, "lastStatus", lastStatus)
	p.markFailed(ctx, paymentID)
	pollTimedOutCounter.Inc()
	pollDurationHistogram.Update(float64(time.Since(start).Milliseconds()))
	return &Result{Outcome: OutcomeTimedOut, LastStatus: lastStatus, Attempts: p.cfg.MaxAttempts}, nil
}

// markFailed updates the record to Failed, best effort: a persistent failure
// here is logged and swallowed, it never changes the reported outcome.
func (p *Poller) markFailed(ctx context.Context, paymentID int64) {
	err := retry.DoVoid(ctx, func(ctx context.Context) error {
		_, err := p.payments.Update(ctx, paymentID, map[string]any{
			"payment_status": payload.PaymentFailed,
		})
		return err
	}, p.cfg.MarkFailedRetry)
	if err != nil {
		p.logger.ErrorContext(ctx, "Best-effort failed-status update did not stick", "paymentId", paymentID, "error", err)
		pollMarkFailedErrors.Inc()
	}
}
