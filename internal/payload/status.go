package payload

import "strings"

// StatusClass buckets the gateway's status vocabulary into the three classes
// the poller and the decision engine act on.
type StatusClass int

const (
	// StatusInFlight covers pending/processing/initiated and any value we do
	// not recognize. Unknown statuses are deliberately treated as in-flight so
	// a real payment is never abandoned on a vocabulary mismatch.
	StatusInFlight StatusClass = iota
	StatusSuccess
	StatusFailure
)

func ClassifyStatus(status string) StatusClass {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "completed":
		return StatusSuccess
	case "failed", "cancelled", "canceled", "timeout", "expired":
		return StatusFailure
	default:
		return StatusInFlight
	}
}
