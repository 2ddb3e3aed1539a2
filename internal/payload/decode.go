package payload

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrPaymentIdentifierMissing means a record-creation response carried no
// usable identifier in any of the shapes the backend is known to produce.
var ErrPaymentIdentifierMissing = errors.New("payment identifier missing from response")

// DecodeRecord parses a single payment record that may arrive flat or
// wrapped in a data envelope.
func DecodeRecord(body []byte) (*PaymentRecord, error) {
	body = bytes.TrimSpace(body)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && isObject(env.Data) {
		body = env.Data
	}

	var record PaymentRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, errors.Wrap(err, "decoding payment record")
	}
	return &record, nil
}

// DecodeRecords parses a record list that may arrive as a bare array or as
// {"data": [...]}; each element may itself be flat or data-wrapped.
func DecodeRecords(body []byte) ([]PaymentRecord, error) {
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] != '[' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, errors.Wrap(err, "decoding payment record list")
		}
		body = bytes.TrimSpace(env.Data)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrap(err, "decoding payment record list")
	}

	records := make([]PaymentRecord, 0, len(items))
	for _, item := range items {
		record, err := DecodeRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// ExtractPaymentID pulls the created record's identifier out of a creation
// response, trying the known shapes in order: top-level payment_id, the same
// fields nested under data, a generic id, and finally a single-element list
// of any of those.
func ExtractPaymentID(body []byte) (int64, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return 0, ErrPaymentIdentifierMissing
	}

	if body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil || len(items) != 1 {
			return 0, ErrPaymentIdentifierMissing
		}
		return ExtractPaymentID(items[0])
	}

	var probe struct {
		PaymentID *int64          `json:"payment_id"`
		ID        *int64          `json:"id"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return 0, ErrPaymentIdentifierMissing
	}

	if probe.PaymentID != nil {
		return *probe.PaymentID, nil
	}
	if isObject(probe.Data) || isArray(probe.Data) {
		if id, err := ExtractPaymentID(probe.Data); err == nil {
			return id, nil
		}
	}
	if probe.ID != nil {
		return *probe.ID, nil
	}
	return 0, ErrPaymentIdentifierMissing
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
