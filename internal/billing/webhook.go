// Package billing handles subscription webhooks from the payment provider.
package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event types sent by the payment provider.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.paid"
	EventInvoiceFailed       = "invoice.payment_failed"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// Tolerance is the maximum accepted age of a signed webhook payload.
const Tolerance = 5 * time.Minute

// Event is a parsed provider webhook event.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the subscription facts we care about.
type EventData struct {
	CustomerID       string `json:"customer"`
	SubscriptionID   string `json:"subscription"`
	UserID           string `json:"client_reference_id"`
	Plan             string `json:"plan"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

// PeriodEnd converts the unix period end into a time, nil when unset.
func (d EventData) PeriodEnd() *time.Time {
	if d.CurrentPeriodEnd == 0 {
		return nil
	}
	t := time.Unix(d.CurrentPeriodEnd, 0).UTC()
	return &t
}

// VerifySignature checks the provider's signature header against the
// raw request body. The header carries a unix timestamp and an HMAC of
// "<timestamp>.<body>", in the form "t=1692000000,v1=hexdigest".
func VerifySignature(secret []byte, header string, body []byte, now time.Time) error {
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > Tolerance || age < -Tolerance {
		return ErrStaleTimestamp
	}

	signed := fmt.Sprintf("%d.%s", timestamp, body)
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(signed))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

// PlanForStatus maps a provider subscription status onto the plan a
// user should hold. Anything not active or trialing drops to free.
func PlanForStatus(plan, status string) string {
	switch status {
	case "active", "trialing":
		if plan == "" {
			return "pro"
		}
		return plan
	default:
		return "free"
	}
}
