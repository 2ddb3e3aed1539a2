package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"payment-reconciler/internal/client"
	"payment-reconciler/internal/payload"

	"github.com/pkg/errors"
)

// SyntheticPrefix marks locally generated placeholder transaction ids. A real
// gateway receipt never starts with it.
const SyntheticPrefix = "MPESA_"

// SyntheticTransactionID builds a placeholder transaction id that cannot
// collide with a real receipt: prefix, creation timestamp, booking id.
func SyntheticTransactionID(bookingID int64) string {
	return fmt.Sprintf("%s%d_%d", SyntheticPrefix, time.Now().Unix(), bookingID)
}

// Resolver finds or creates the single authoritative payment record for a
// booking. Lookup-first keeps repeated calls from stacking up duplicates,
// though the check is not atomic against a concurrent attempt.
type Resolver struct {
	payments *client.PaymentsClient
	logger   *slog.Logger
}

func New(payments *client.PaymentsClient, logger *slog.Logger) *Resolver {
	return &Resolver{payments: payments, logger: logger}
}

func (r *Resolver) ResolveOrCreate(ctx context.Context, bookingID int64, amount float64) (int64, error) {
	existing, err := r.payments.FindByBooking(ctx, bookingID)
	if err == nil {
		r.logger.InfoContext(ctx, "Found existing payment record", "bookingId", bookingID, "paymentId", existing.PaymentID)
		return existing.PaymentID, nil
	}
	if !errors.Is(err, client.ErrRecordNotFound) {
		return 0, errors.Wrap(err, "looking up payment record")
	}

	now := time.Now()
	transactionID := SyntheticTransactionID(bookingID)
	record := payload.PaymentRecord{
		BookingID:     bookingID,
		Amount:        amount,
		PaymentStatus: payload.PaymentPending,
		PaymentMethod: payload.MethodMpesa,
		TransactionID: &transactionID,
		PaymentDate:   &now,
	}

	body, err := r.payments.Create(ctx, record)
	if err != nil {
		return 0, errors.Wrap(err, "creating payment record")
	}

	paymentID, err := payload.ExtractPaymentID(body)
	if err != nil {
		return 0, err
	}

	r.logger.InfoContext(ctx, "Created payment record", "bookingId", bookingID, "paymentId", paymentID, "transactionId", transactionID)
	return paymentID, nil
}
