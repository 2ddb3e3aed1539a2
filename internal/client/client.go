package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeoutMs = 10_000

// ErrorBody is the structured error shape the collaborator services return.
// Either field may be absent.
type ErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// APIError carries the HTTP status and whatever structured body accompanied
// an error response.
type APIError struct {
	StatusCode int
	Body       ErrorBody
}

func (e *APIError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body.Message)
	}
	if e.Body.Error != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body.Error)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// HTTPStatus lets callers classify the failure without depending on the
// concrete type.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// UserMessage extracts display text from an error: a structured body's
// message field first, then its error field, then the error's own text, then
// the fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Body.Message != "" {
			return apiErr.Body.Message
		}
		if apiErr.Body.Error != "" {
			return apiErr.Body.Error
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}

type api struct {
	baseURL string
	client  *http.Client
}

func newAPI(baseURL string, timeout time.Duration) api {
	if timeout <= 0 {
		timeout = defaultTimeoutMs * time.Millisecond
	}
	return api{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *api) doJSON(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshalling request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, &apiErr.Body)
		return nil, apiErr
	}

	return respBody, nil
}
