package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/newdok/mailingest/internal/model"
)

// ArticleCount returns how many articles have been ingested for a user,
// hidden ones included.
func (s *SQLStore) ArticleCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM articles WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("counting articles for %s: %w", userID, err)
	}
	return n, nil
}

// ListArticles returns a user's articles in mailbox order.
func (s *SQLStore) ListArticles(ctx context.Context, userID string) ([]model.Article, error) {
	var out []model.Article
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, user_id, newsletter_id, title, body, plain_body, preview, date,
			publish_year, publish_month, publish_day, mailbox_position, is_visible, status, created_at
		FROM articles WHERE user_id = ? ORDER BY mailbox_position`), userID)
	if err != nil {
		return nil, fmt.Errorf("listing articles for %s: %w", userID, err)
	}
	return out, nil
}

func createArticle(ctx context.Context, q sqlx.ExtContext, a *model.Article) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = model.ArticleUnread
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO articles (
			id, user_id, newsletter_id, title, body, plain_body, preview, date,
			publish_year, publish_month, publish_day, mailbox_position, is_visible, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.UserID, a.NewsletterID, a.Title, a.Body, a.PlainBody, a.Preview, a.Date.UTC(),
		a.PublishYear, a.PublishMonth, a.PublishDay, a.MailboxPosition, boolToInt(a.IsVisible), a.Status, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating article at position %d: %w", a.MailboxPosition, err)
	}
	return nil
}

func recordSkip(ctx context.Context, q sqlx.ExtContext, sk model.SkippedMessage) error {
	if sk.CreatedAt.IsZero() {
		sk.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO mailbox_skips (user_id, position, reason, sender, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		sk.UserID, sk.Position, sk.Reason, sk.Sender, sk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording skip at position %d: %w", sk.Position, err)
	}
	return nil
}
