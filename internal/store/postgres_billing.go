package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) UpsertSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, customer_id, subscription_id, plan, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			customer_id=EXCLUDED.customer_id,
			subscription_id=EXCLUDED.subscription_id,
			plan=EXCLUDED.plan,
			status=EXCLUDED.status,
			current_period_end=EXCLUDED.current_period_end,
			updated_at=NOW()
	`, sub.UserID, sub.CustomerID, sub.SubscriptionID, sub.Plan, sub.Status, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubscription(ctx context.Context, userID string) (Subscription, error) {
	var sub Subscription
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, customer_id, subscription_id, plan, status, current_period_end, updated_at
		FROM subscriptions
		WHERE user_id=$1
	`, userID).Scan(&sub.UserID, &sub.CustomerID, &sub.SubscriptionID, &sub.Plan, &sub.Status, &sub.CurrentPeriodEnd, &sub.UpdatedAt)
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// RecordBillingEvent stores the provider event ID. Returns false when
// the event was seen before, letting webhook handling stay idempotent
// under provider retries.
func (s *PostgresStore) RecordBillingEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_events (id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("record billing event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record billing event rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) FindUserByCustomerID(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM subscriptions WHERE customer_id=$1
	`, customerID).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}
