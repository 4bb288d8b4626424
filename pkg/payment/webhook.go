package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook deliveries are authenticated with the Stripe-Signature header:
// "t=<unix>,v1=<hex hmac>" where the HMAC-SHA256 is computed over
// "<t>.<payload>" with the shared endpoint secret. Unsigned or
// bad-signature deliveries must be rejected before any processing.

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	ErrStaleWebhook = errors.New("webhook timestamp outside tolerance")
	ErrBadSigHeader = errors.New("malformed signature header")
)

const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds how old a signed payload may be, limiting
// replay of captured deliveries.
const DefaultTolerance = 5 * time.Minute

// CheckoutSessionObject is the session payload embedded in confirmation
// events.
type CheckoutSessionObject struct {
	ID            string            `json:"id"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSessionObject `json:"object"`
	} `json:"data"`
}

// IsPaymentCompleted reports whether this event kind confirms a paid
// session.
func (e *WebhookEvent) IsPaymentCompleted() bool {
	return e.Type == "checkout.session.completed" ||
		e.Type == "checkout.session.async_payment_succeeded"
}

// ComputeSignature returns the hex HMAC for a timestamp and payload.
func ComputeSignature(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstructEvent verifies the signature header against the payload and
// parses the event. tolerance <= 0 means DefaultTolerance.
func ConstructEvent(payload []byte, sigHeader, secret string, tolerance time.Duration) (*WebhookEvent, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var timestamp int64 = -1
	var candidates []string
	for _, part := range strings.Split(sigHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, ErrBadSigHeader
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp < 0 || len(candidates) == 0 {
		return nil, ErrBadSigHeader
	}

	if d := time.Since(time.Unix(timestamp, 0)); d > tolerance || d < -tolerance {
		return nil, ErrStaleWebhook
	}

	expected := ComputeSignature(secret, timestamp, payload)
	valid := false
	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			valid = true
		}
	}
	if !valid {
		return nil, ErrBadSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parsing webhook payload: %w", err)
	}
	return &event, nil
}
