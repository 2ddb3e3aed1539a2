package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payment-reconciler/internal/payload"

	"github.com/pkg/errors"
)

// ErrRecordNotFound reports that no payment record exists for the lookup key.
var ErrRecordNotFound = errors.New("payment record not found")

// PaymentsClient talks to the payment-records service.
type PaymentsClient struct {
	api
}

func NewPaymentsClient(baseURL string, timeout time.Duration) *PaymentsClient {
	return &PaymentsClient{api: newAPI(baseURL, timeout)}
}

func (c *PaymentsClient) List(ctx context.Context) ([]payload.PaymentRecord, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/payments", nil)
	if err != nil {
		return nil, err
	}
	return payload.DecodeRecords(body)
}

// Create posts a new record and returns the raw response body; the backend's
// creation responses vary in shape, so identifier extraction is left to
// payload.ExtractPaymentID.
func (c *PaymentsClient) Create(ctx context.Context, record payload.PaymentRecord) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/payments", record)
}

func (c *PaymentsClient) GetByID(ctx context.Context, id int64) (*payload.PaymentRecord, error) {
	body, err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/payments/%d", id), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(ErrRecordNotFound, "payment %d", id)
		}
		return nil, err
	}
	return payload.DecodeRecord(body)
}

// FindByBooking lists records and returns the one matching the booking, or
// ErrRecordNotFound when no record exists for it.
func (c *PaymentsClient) FindByBooking(ctx context.Context, bookingID int64) (*payload.PaymentRecord, error) {
	records, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].BookingID == bookingID {
			return &records[i], nil
		}
	}
	return nil, errors.Wrapf(ErrRecordNotFound, "booking %d", bookingID)
}

func (c *PaymentsClient) Update(ctx context.Context, id int64, fields map[string]any) (*payload.PaymentRecord, error) {
	body, err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/payments/%d", id), fields)
	if err != nil {
		return nil, err
	}
	return payload.DecodeRecord(body)
}
