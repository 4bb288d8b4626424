package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

var testPayload = []byte(`{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "cs_test_abc",
			"amount_total": 5900,
			"currency": "usd",
			"customer_email": "buyer@example.com",
			"metadata": {"cart_code": "abcdefghijk"}
		}
	}
}`)

func signedHeader(t *testing.T, payload []byte, at time.Time) string {
	t.Helper()
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature(testSecret, ts, payload))
}

func TestConstructEventValidSignature(t *testing.T) {
	header := signedHeader(t, testPayload, time.Now())

	event, err := ConstructEvent(testPayload, header, testSecret, DefaultTolerance)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.True(t, event.IsPaymentCompleted())
	assert.Equal(t, "cs_test_abc", event.Data.Object.ID)
	assert.Equal(t, int64(5900), event.Data.Object.AmountTotal)
	assert.Equal(t, "abcdefghijk", event.Data.Object.Metadata["cart_code"])
}

func TestConstructEventWrongSecret(t *testing.T) {
	header := signedHeader(t, testPayload, time.Now())

	_, err := ConstructEvent(testPayload, header, "whsec_other", DefaultTolerance)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestConstructEventTamperedPayload(t *testing.T) {
	header := signedHeader(t, testPayload, time.Now())

	tampered := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_evil"}}}`)
	_, err := ConstructEvent(tampered, header, testSecret, DefaultTolerance)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestConstructEventStaleTimestamp(t *testing.T) {
	header := signedHeader(t, testPayload, time.Now().Add(-10*time.Minute))

	_, err := ConstructEvent(testPayload, header, testSecret, DefaultTolerance)
	assert.ErrorIs(t, err, ErrStaleWebhook)
}

func TestConstructEventMalformedHeader(t *testing.T) {
	for _, header := range []string{
		"",
		"v1=deadbeef",
		"t=notanumber,v1=deadbeef",
		fmt.Sprintf("t=%d", time.Now().Unix()),
	} {
		_, err := ConstructEvent(testPayload, header, testSecret, DefaultTolerance)
		assert.ErrorIs(t, err, ErrBadSigHeader, "header %q", header)
	}
}

func TestConstructEventAcceptsAnyValidCandidate(t *testing.T) {
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "0000", ComputeSignature(testSecret, ts, testPayload))

	event, err := ConstructEvent(testPayload, header, testSecret, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
}

func TestIsPaymentCompleted(t *testing.T) {
	completed := &WebhookEvent{Type: "checkout.session.completed"}
	assert.True(t, completed.IsPaymentCompleted())

	async := &WebhookEvent{Type: "checkout.session.async_payment_succeeded"}
	assert.True(t, async.IsPaymentCompleted())

	other := &WebhookEvent{Type: "payment_intent.created"}
	assert.False(t, other.IsPaymentCompleted())
}
