package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/newdok/mailingest/internal/model"
)

// subscriptionRow is a subscription joined with its brand.
type subscriptionRow struct {
	model.Subscription
	BrandName string `db:"brand_name"`
	ImageURL  string `db:"image_url"`
}

// ListSubscriptions returns the user's subscriptions with brand details,
// oldest first.
func (s *SQLStore) ListSubscriptions(ctx context.Context, userID string, status *model.SubscriptionStatus) ([]model.SubscriptionView, error) {
	query := `
		SELECT s.user_id, s.newsletter_id, s.status, s.created_at, s.updated_at,
			n.brand_name, n.image_url
		FROM subscriptions s
		JOIN newsletters n ON n.id = s.newsletter_id
		WHERE s.user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND s.status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY s.created_at, s.newsletter_id`

	var rows []subscriptionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing subscriptions for %s: %w", userID, err)
	}

	views := make([]model.SubscriptionView, 0, len(rows))
	for _, r := range rows {
		n := model.Newsletter{ID: r.NewsletterID, BrandName: r.BrandName, ImageURL: r.ImageURL}
		views = append(views, model.NewSubscriptionView(n, r.Subscription))
	}
	return views, nil
}

// GetSubscription returns the subscription for a user and brand, or ErrNotFound.
func (s *SQLStore) GetSubscription(ctx context.Context, userID, newsletterID string) (*model.Subscription, error) {
	return getSubscription(ctx, s.db, userID, newsletterID)
}

// UpdateSubscriptionStatus sets the status of an existing subscription.
func (s *SQLStore) UpdateSubscriptionStatus(ctx context.Context, userID, newsletterID string, status model.SubscriptionStatus) error {
	return updateSubscriptionStatus(ctx, s.db, userID, newsletterID, status)
}

func getSubscription(ctx context.Context, q sqlx.ExtContext, userID, newsletterID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := getOne(ctx, q, &sub, q.Rebind(`
		SELECT user_id, newsletter_id, status, created_at, updated_at
		FROM subscriptions WHERE user_id = ? AND newsletter_id = ?`),
		userID, newsletterID,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func createSubscription(ctx context.Context, q sqlx.ExtContext, sub *model.Subscription) error {
	if !sub.Status.Valid() {
		return fmt.Errorf("invalid subscription status %q", sub.Status)
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = sub.CreatedAt

	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO subscriptions (user_id, newsletter_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`),
		sub.UserID, sub.NewsletterID, string(sub.Status), sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating subscription: %w", err)
	}
	return nil
}

func updateSubscriptionStatus(ctx context.Context, q sqlx.ExtContext, userID, newsletterID string, status model.SubscriptionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid subscription status %q", status)
	}
	result, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE subscriptions SET status = ?, updated_at = ?
		WHERE user_id = ? AND newsletter_id = ?`),
		string(status), time.Now().UTC(), userID, newsletterID,
	)
	if err != nil {
		return fmt.Errorf("updating subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
