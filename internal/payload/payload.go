package payload

import "time"

const (
	PaymentPending   = "Pending"
	PaymentCompleted = "Completed"
	PaymentFailed    = "Failed"

	BookingPending   = "Pending"
	BookingConfirmed = "Confirmed"
	BookingCancelled = "Cancelled"

	MethodMpesa = "mpesa"
)

// PaymentRecord is the payment-records service wire shape. TransactionID
// holds a synthetic placeholder until the gateway callback writes the real
// receipt over it.
type PaymentRecord struct {
	PaymentID     int64      `json:"payment_id"`
	BookingID     int64      `json:"booking_id"`
	Amount        float64    `json:"amount"`
	PaymentStatus string     `json:"payment_status"`
	PaymentMethod string     `json:"payment_method"`
	TransactionID *string    `json:"transaction_id"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
}

type Booking struct {
	BookingID     int64   `json:"booking_id"`
	UserID        int64   `json:"user_id"`
	EventID       int64   `json:"event_id"`
	Quantity      int     `json:"quantity"`
	TotalAmount   float64 `json:"total_amount"`
	BookingStatus string  `json:"booking_status"`
}
