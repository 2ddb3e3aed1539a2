package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"payment-reconciler/internal/client"
	"payment-reconciler/internal/config"
	"payment-reconciler/internal/payload"
	"payment-reconciler/internal/resolver"
	"payment-reconciler/internal/retry"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

// ErrPaymentRecordNotFound means reconciliation could not locate a record for
// the booking; the booking is left untouched.
var ErrPaymentRecordNotFound = errors.New("payment record not found for booking")

var (
	reconcileConfirmedCounter = metrics.GetOrCreateCounter(`payment_reconcile_total{decision="confirmed"}`)
	reconcilePendingCounter   = metrics.GetOrCreateCounter(`payment_reconcile_total{decision="left_pending"}`)
)

const defaultGraceDelayMs = 3_000

// A receipt shorter than this cannot be a real gateway confirmation code.
const minReceiptLength = 10

// pushCorrelationPrefix marks the gateway's interactive correlation tokens
// (CheckoutRequestID); those are not receipts either.
const pushCorrelationPrefix = "ws_CO_"

type Decision string

const (
	DecisionConfirmed   Decision = "confirmed"
	DecisionLeftPending Decision = "left_pending"
)

// Result is what the caller shows the user.
type Result struct {
	Decision  Decision
	Message   string
	RawStatus string
	Receipt   string
}

type Config struct {
	// GraceDelay gives the gateway's asynchronous callback time to land
	// before the record is read.
	GraceDelay time.Duration
}

func DefaultConfig() Config {
	return Config{GraceDelay: defaultGraceDelayMs * time.Millisecond}
}

func ConfigFrom(cfg config.Reconciler) Config {
	out := DefaultConfig()
	if cfg.GraceDelayMs > 0 {
		out.GraceDelay = time.Duration(cfg.GraceDelayMs) * time.Millisecond
	}
	return out
}

// Engine decides a booking's final status from payment evidence that may be
// incomplete or delayed, and applies a Confirmed decision to the booking
// service. Re-entrant: it re-reads current state on every call.
type Engine struct {
	payments *client.PaymentsClient
	bookings *client.BookingClient
	cfg      Config
	logger   *slog.Logger
}

func New(payments *client.PaymentsClient, bookings *client.BookingClient, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{payments: payments, bookings: bookings, cfg: cfg, logger: logger}
}

func (e *Engine) DecideAndApply(ctx context.Context, bookingID int64) (*Result, error) {
	if err := retry.Sleep(ctx, e.cfg.GraceDelay); err != nil {
		return nil, err
	}

	record, err := e.payments.FindByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, client.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrPaymentRecordNotFound, "booking %d", bookingID)
		}
		return nil, errors.Wrap(err, "fetching payment record")
	}

	receipt := ""
	if record.TransactionID != nil {
		receipt = *record.TransactionID
	}
	trusted := hasRealReceipt(receipt)

	statusClass := payload.ClassifyStatus(record.PaymentStatus)

	if statusClass == payload.StatusSuccess || trusted {
		if _, err := e.bookings.UpdateStatus(ctx, bookingID, payload.BookingConfirmed); err != nil {
			return nil, errors.Wrapf(err, "confirming booking %d", bookingID)
		}
		e.logger.InfoContext(ctx, "Booking confirmed", "bookingId", bookingID, "status", record.PaymentStatus, "receipt", receipt)
		reconcileConfirmedCounter.Inc()
		return &Result{
			Decision:  DecisionConfirmed,
			Message:   "Payment confirmed. Your booking is confirmed.",
			RawStatus: record.PaymentStatus,
			Receipt:   receipt,
		}, nil
	}

	normalized := strings.ToLower(strings.TrimSpace(record.PaymentStatus))
	message := fmt.Sprintf("Payment status is %q. Your booking remains pending.", record.PaymentStatus)
	if normalized == "pending" || normalized == "processing" {
		message = "Payment is still processing. Your booking will be confirmed once it completes."
	}

	e.logger.InfoContext(ctx, "Booking left pending", "bookingId", bookingID, "status", record.PaymentStatus)
	reconcilePendingCounter.Inc()
	return &Result{
		Decision:  DecisionLeftPending,
		Message:   message,
		RawStatus: record.PaymentStatus,
		Receipt:   receipt,
	}, nil
}

// hasRealReceipt reports whether the transaction id looks like a genuine
// gateway receipt rather than one of our placeholders. A real receipt is
// trusted over a stale status field.
func hasRealReceipt(transactionID string) bool {
	if transactionID == "" {
		return false
	}
	if strings.HasPrefix(transactionID, resolver.SyntheticPrefix) {
		return false
	}
	if strings.HasPrefix(transactionID, pushCorrelationPrefix) {
		return false
	}
	return len(transactionID) >= minReceiptLength
}
