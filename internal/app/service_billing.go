package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"realthor/api/internal/billing"
	"realthor/api/internal/store"
)

// HandleBillingWebhook verifies and applies one provider event. Replayed
// events are acknowledged without reprocessing.
func (s *Service) HandleBillingWebhook(ctx context.Context, signatureHeader string, body []byte) error {
	if s.cfg.BillingWebhookSecret == "" {
		return domainError(http.StatusNotImplemented, "BILLING_DISABLED", "billing webhook is not configured", nil)
	}
	err := billing.VerifySignature([]byte(s.cfg.BillingWebhookSecret), signatureHeader, body, time.Now())
	if err != nil {
		if errors.Is(err, billing.ErrStaleTimestamp) {
			return domainError(http.StatusBadRequest, "STALE_SIGNATURE", "webhook signature timestamp is too old", nil)
		}
		return domainError(http.StatusBadRequest, "INVALID_SIGNATURE", "webhook signature verification failed", nil)
	}

	var event billing.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return domainError(http.StatusBadRequest, "INVALID_PAYLOAD", "webhook body is not valid JSON", nil)
	}
	if event.ID == "" || event.Type == "" {
		return domainError(http.StatusBadRequest, "INVALID_PAYLOAD", "event id and type are required", nil)
	}

	firstSeen, err := s.store.RecordBillingEvent(ctx, event.ID, event.Type)
	if err != nil {
		return err
	}
	if !firstSeen {
		log.Printf("billing: replayed event %s ignored", event.ID)
		return nil
	}

	userID, err := s.resolveBillingUser(ctx, event.Data)
	if err != nil {
		return err
	}

	switch event.Type {
	case billing.EventCheckoutCompleted, billing.EventSubscriptionUpdated, billing.EventInvoicePaid:
		return s.store.UpsertSubscription(ctx, store.Subscription{
			UserID:           userID,
			CustomerID:       event.Data.CustomerID,
			SubscriptionID:   event.Data.SubscriptionID,
			Plan:             billing.PlanForStatus(event.Data.Plan, event.Data.Status),
			Status:           subscriptionStatus(event.Data.Status),
			CurrentPeriodEnd: event.Data.PeriodEnd(),
		})
	case billing.EventSubscriptionDeleted:
		return s.store.UpsertSubscription(ctx, store.Subscription{
			UserID:         userID,
			CustomerID:     event.Data.CustomerID,
			SubscriptionID: event.Data.SubscriptionID,
			Plan:           "free",
			Status:         "canceled",
		})
	case billing.EventInvoiceFailed:
		return s.store.UpsertSubscription(ctx, store.Subscription{
			UserID:           userID,
			CustomerID:       event.Data.CustomerID,
			SubscriptionID:   event.Data.SubscriptionID,
			Plan:             billing.PlanForStatus(event.Data.Plan, event.Data.Status),
			Status:           "past_due",
			CurrentPeriodEnd: event.Data.PeriodEnd(),
		})
	default:
		// Unknown event types are acknowledged so the provider stops
		// retrying them.
		log.Printf("billing: ignoring event type %s", event.Type)
		return nil
	}
}

// resolveBillingUser finds the account an event belongs to, preferring
// the reference the checkout flow attached over the customer lookup.
func (s *Service) resolveBillingUser(ctx context.Context, data billing.EventData) (string, error) {
	if data.UserID != "" {
		return data.UserID, nil
	}
	if data.CustomerID == "" {
		return "", domainError(http.StatusBadRequest, "INVALID_PAYLOAD", "event carries no customer reference", nil)
	}
	userID, err := s.store.FindUserByCustomerID(ctx, data.CustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domainError(http.StatusBadRequest, "UNKNOWN_CUSTOMER", "no account matches the customer",
				map[string]any{"customer": data.CustomerID})
		}
		return "", err
	}
	return userID, nil
}

func subscriptionStatus(status string) string {
	if status == "" {
		return "active"
	}
	return status
}

// Subscription returns the account's plan; accounts that never purchased
// anything read as the free plan.
func (s *Service) Subscription(ctx context.Context, userID string) (map[string]any, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{"plan": "free", "status": "inactive"}, nil
		}
		return nil, err
	}
	payload := map[string]any{
		"plan":   sub.Plan,
		"status": sub.Status,
	}
	if sub.CurrentPeriodEnd != nil {
		payload["currentPeriodEnd"] = sub.CurrentPeriodEnd.Format(time.RFC3339)
	}
	return payload, nil
}

// PortalURL points the client at the provider's self-service portal.
func (s *Service) PortalURL() (string, error) {
	if s.cfg.BillingPortalURL == "" {
		return "", domainError(http.StatusNotImplemented, "BILLING_DISABLED", "billing portal is not configured", nil)
	}
	return s.cfg.BillingPortalURL, nil
}
