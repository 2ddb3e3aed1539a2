package payload_test

import (
	"testing"

	"payment-reconciler/internal/payload"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	success := []string{"SUCCESS", "success", "Completed", "completed"}
	for _, s := range success {
		assert.Equal(t, payload.StatusSuccess, payload.ClassifyStatus(s), s)
	}

	failure := []string{"failed", "Cancelled", "canceled", "TIMEOUT", "Expired"}
	for _, s := range failure {
		assert.Equal(t, payload.StatusFailure, payload.ClassifyStatus(s), s)
	}

	inFlight := []string{"pending", "Processing", "initiated", "unknown", "reversed", "", "  completed now  "}
	for _, s := range inFlight {
		assert.Equal(t, payload.StatusInFlight, payload.ClassifyStatus(s), s)
	}

	// surrounding whitespace is tolerated
	assert.Equal(t, payload.StatusSuccess, payload.ClassifyStatus("  completed "))
}
