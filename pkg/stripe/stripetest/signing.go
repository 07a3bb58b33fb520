// Package stripetest builds signed webhook payloads for handler tests.
package stripetest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
)

// SignedEvent marshals an event carrying object and returns the payload with
// a valid Stripe-Signature header for secret.
func SignedEvent(t testing.TB, eventID string, eventType stripe.EventType, object any, secret string) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	event := stripe.Event{
		ID:         eventID,
		Type:       eventType,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: raw},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, SignatureHeader(payload, secret, time.Now().Unix())
}

// SignatureHeader computes the v1 scheme header Stripe sends with webhooks.
func SignatureHeader(payload []byte, secret string, ts int64) string {
	signed := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
