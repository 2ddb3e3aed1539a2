package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"payment-reconciler/internal/payload"

	"github.com/pkg/errors"
)

// BookingClient applies reconciliation decisions to the booking service.
type BookingClient struct {
	api
}

func NewBookingClient(baseURL string, timeout time.Duration) *BookingClient {
	return &BookingClient{api: newAPI(baseURL, timeout)}
}

func (c *BookingClient) UpdateStatus(ctx context.Context, bookingID int64, status string) (*payload.Booking, error) {
	body, err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/bookings/%d", bookingID), map[string]any{
		"booking_status": status,
	})
	if err != nil {
		return nil, err
	}

	var booking payload.Booking
	if err := unmarshalMaybeWrapped(body, &booking); err != nil {
		return nil, errors.Wrap(err, "decoding booking")
	}
	return &booking, nil
}
