package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// GatewayClient talks to the M-Pesa push-payment gateway.
type GatewayClient struct {
	api
}

func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{api: newAPI(baseURL, timeout)}
}

type StkPushRequest struct {
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
	PaymentID   int64   `json:"payment_id"`
}

// StkPushResponse carries the gateway's correlation token for the push; the
// final receipt only exists once the customer approves on the handset.
type StkPushResponse struct {
	CheckoutRequestID   string `json:"checkout_request_id"`
	MerchantRequestID   string `json:"merchant_request_id,omitempty"`
	ResponseDescription string `json:"response_description,omitempty"`
}

func (c *GatewayClient) InitiateStkPush(ctx context.Context, req StkPushRequest) (*StkPushResponse, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/mpesa/stkpush", req)
	if err != nil {
		return nil, err
	}

	var resp StkPushResponse
	if err := unmarshalMaybeWrapped(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decoding stk push response")
	}
	return &resp, nil
}

// unmarshalMaybeWrapped decodes a body that may or may not wrap its payload
// under a data envelope.
func unmarshalMaybeWrapped(body []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if data := bytes.TrimSpace(env.Data); len(data) > 0 && data[0] == '{' {
			body = data
		}
	}
	return json.Unmarshal(body, out)
}
