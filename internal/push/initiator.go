package push

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"payment-reconciler/internal/client"

	"github.com/pkg/errors"
)

// ErrInvalidPhoneNumber means the number failed local validation; the
// gateway was never contacted.
var ErrInvalidPhoneNumber = errors.New("invalid phone number: expected 254 followed by 9 digits")

// Safaricom local format: country code 254 plus 9 digits, no symbols.
var phonePattern = regexp.MustCompile(`^254\d{9}$`)

const fallbackMessage = "Failed to initiate M-Pesa payment. Please try again."

// ValidatePhone checks the strict local format without side effects.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return ErrInvalidPhoneNumber
	}
	return nil
}

// InitiationError wraps a gateway rejection with user-facing text.
type InitiationError struct {
	Message string
	cause   error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("gateway initiation failed: %s", e.Message)
}

func (e *InitiationError) Unwrap() error {
	return e.cause
}

// Initiator sends STK push requests to the gateway, which prompts the
// customer's handset out of band.
type Initiator struct {
	gateway *client.GatewayClient
	logger  *slog.Logger
}

func New(gateway *client.GatewayClient, logger *slog.Logger) *Initiator {
	return &Initiator{gateway: gateway, logger: logger}
}

// Initiate validates the phone number and requests a push, returning the
// gateway's correlation token.
func (i *Initiator) Initiate(ctx context.Context, phone string, amount float64, paymentID int64) (string, error) {
	if err := ValidatePhone(phone); err != nil {
		return "", err
	}

	resp, err := i.gateway.InitiateStkPush(ctx, client.StkPushRequest{
		PhoneNumber: phone,
		Amount:      amount,
		PaymentID:   paymentID,
	})
	if err != nil {
		i.logger.ErrorContext(ctx, "STK push initiation failed", "paymentId", paymentID, "error", err)
		return "", &InitiationError{Message: client.UserMessage(err, fallbackMessage), cause: err}
	}

	i.logger.InfoContext(ctx, "STK push initiated", "paymentId", paymentID, "checkoutRequestId", resp.CheckoutRequestID)
	return resp.CheckoutRequestID, nil
}
