package reconcile_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"payment-reconciler/internal/client"
	"payment-reconciler/internal/reconcile"

	"github.com/h2non/gock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	paymentsURL = "http://payments.local"
	bookingsURL = "http://bookings.local"
)

func newEngine() *reconcile.Engine {
	payments := client.NewPaymentsClient(paymentsURL, 5*time.Second)
	bookings := client.NewBookingClient(bookingsURL, 5*time.Second)
	cfg := reconcile.Config{GraceDelay: time.Millisecond}
	return reconcile.New(payments, bookings, cfg, slog.Default())
}

func mockRecord(status, transactionID string) {
	gock.New(paymentsURL).
		Get("/payments$").
		Reply(200).
		BodyString(fmt.Sprintf(
			`[{"payment_id": 7, "booking_id": 42, "payment_status": %q, "transaction_id": %q}]`,
			status, transactionID))
}

func mockBookingConfirm() {
	gock.New(bookingsURL).
		Put("/bookings/42").
		JSON(map[string]any{"booking_status": "Confirmed"}).
		Reply(200).
		BodyString(`{"booking_id": 42, "booking_status": "Confirmed"}`)
}

func TestDecideAndApply_CompletedStatusConfirms(t *testing.T) {
	defer gock.Off()
	mockRecord("Completed", "MPESA_1700000000_42")
	mockBookingConfirm()

	result, err := newEngine().DecideAndApply(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DecisionConfirmed, result.Decision)
	assert.True(t, gock.IsDone())
}

func TestDecideAndApply_RealReceiptTrumpsStatus(t *testing.T) {
	defer gock.Off()
	mockRecord("Pending", "QGH7XJ3K9P")
	mockBookingConfirm()

	result, err := newEngine().DecideAndApply(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DecisionConfirmed, result.Decision)
	assert.Equal(t, "QGH7XJ3K9P", result.Receipt)
	assert.True(t, gock.IsDone(), "booking must be confirmed")
}

func TestDecideAndApply_SyntheticReceiptLeftPending(t *testing.T) {
	defer gock.Off()
	mockRecord("Pending", "MPESA_1700000000_42")

	result, err := newEngine().DecideAndApply(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DecisionLeftPending, result.Decision)
	assert.Contains(t, result.Message, "still processing")
}

func TestDecideAndApply_PushTokenNotTrusted(t *testing.T) {
	defer gock.Off()
	mockRecord("Processing", "ws_CO_191220191020363925")

	result, err := newEngine().DecideAndApply(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DecisionLeftPending, result.Decision)
}

func TestDecideAndApply_ShortReceiptNotTrusted(t *testing.T) {
	defer gock.Off()
	mockRecord("Pending", "ABC123")

	result, err := newEngine().DecideAndApply(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DecisionLeftPending, result.Decision)
}

func TestDecideAndApply_UnknownStatusSurfacedRaw(t *testing.T) {
	defer gock.Off()
	mockRecord("reversed", "MPESA_1700000000_42")

	result, err := newEngine().DecideAndApply(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DecisionLeftPending, result.Decision)
	assert.Contains(t, result.Message, "reversed")
	assert.Equal(t, "reversed", result.RawStatus)
}

func TestDecideAndApply_RecordNotFound(t *testing.T) {
	defer gock.Off()
	gock.New(paymentsURL).
		Get("/payments$").
		Reply(200).
		BodyString(`[]`)

	_, err := newEngine().DecideAndApply(context.Background(), 42)
	assert.True(t, errors.Is(err, reconcile.ErrPaymentRecordNotFound))
}

func TestDecideAndApply_Reentrant(t *testing.T) {
	defer gock.Off()
	mockRecord("Completed", "QGH7XJ3K9P")
	mockBookingConfirm()
	mockRecord("Completed", "QGH7XJ3K9P")
	mockBookingConfirm()

	sut := newEngine()
	first, err := sut.DecideAndApply(context.Background(), 42)
	require.NoError(t, err)
	second, err := sut.DecideAndApply(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, first.Decision, second.Decision)
	assert.True(t, gock.IsDone())
}

func TestDecideAndApply_BookingUpdateFailure(t *testing.T) {
	defer gock.Off()
	mockRecord("Completed", "QGH7XJ3K9P")
	gock.New(bookingsURL).
		Put("/bookings/42").
		Reply(500).
		JSON(map[string]string{"error": "unavailable"})

	_, err := newEngine().DecideAndApply(context.Background(), 42)
	assert.Error(t, err)
}
