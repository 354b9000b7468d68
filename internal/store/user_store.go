package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newdok/mailingest/internal/model"
)

// CreateUser inserts a new user. ID and CreatedAt are assigned when empty.
func (s *SQLStore) CreateUser(ctx context.Context, u *model.User) error {
	u.MailboxAddress = strings.ToLower(strings.TrimSpace(u.MailboxAddress))
	if u.MailboxAddress == "" {
		return fmt.Errorf("mailbox address must not be empty")
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (id, mailbox_address, mailbox_password, mailbox_host, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		u.ID, u.MailboxAddress, u.MailboxPassword, u.MailboxHost, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

const userColumns = `
	u.id, u.mailbox_address, u.mailbox_password, u.mailbox_host, u.created_at,
	(SELECT COUNT(*) FROM articles a WHERE a.user_id = u.id) AS article_count,
	(SELECT COUNT(*) FROM mailbox_skips k WHERE k.user_id = u.id) AS skipped_count`

// GetUser returns a single user with counts, or ErrNotFound.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := getOne(ctx, s.db, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users u WHERE u.id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return &u, nil
}

// ListUsers returns every user in registration order.
func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users u ORDER BY u.created_at, u.id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}
