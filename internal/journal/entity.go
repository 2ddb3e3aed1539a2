package journal

import (
	"time"

	"github.com/google/uuid"
)

// Attempt outcomes beyond the poller's own verdicts.
const (
	OutcomeAborted   = "aborted"
	OutcomeCancelled = "cancelled"
)

// AttemptEntity is the audit row for one payment attempt driven by this
// service, from start through its terminal outcome and decision.
type AttemptEntity struct {
	ID           uuid.UUID
	BookingID    int64
	PaymentID    *int64
	Phone        string
	Amount       float64
	GatewayRef   *string
	LastStatus   *string
	PollAttempts int
	Outcome      *string
	Decision     *string
	Error        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DecidedAt    *time.Time
}
