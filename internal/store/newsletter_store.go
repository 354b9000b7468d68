package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newdok/mailingest/internal/model"
)

func normalizeAddress(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}

// CreateNewsletter registers a brand. Addresses are stored lower-cased.
func (s *SQLStore) CreateNewsletter(ctx context.Context, n *model.Newsletter) error {
	if strings.TrimSpace(n.BrandName) == "" {
		return fmt.Errorf("brand name must not be empty")
	}
	n.BrandEmail = normalizeAddress(n.BrandEmail)
	n.SecondEmail = normalizeAddress(n.SecondEmail)
	n.ThirdEmail = normalizeAddress(n.ThirdEmail)
	if n.BrandEmail == "" {
		return fmt.Errorf("brand email must not be empty")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO newsletters (id, brand_name, brand_email, second_email, third_email, double_check, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		n.ID, n.BrandName, n.BrandEmail, n.SecondEmail, n.ThirdEmail,
		boolToInt(n.DoubleCheck), n.ImageURL, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating newsletter: %w", err)
	}
	return nil
}

const newsletterColumns = `id, brand_name, brand_email, second_email, third_email, double_check, image_url, created_at`

// GetNewsletter returns a brand by ID, or ErrNotFound.
func (s *SQLStore) GetNewsletter(ctx context.Context, id string) (*model.Newsletter, error) {
	var n model.Newsletter
	err := getOne(ctx, s.db, &n, s.db.Rebind(`SELECT `+newsletterColumns+` FROM newsletters WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("getting newsletter %s: %w", id, err)
	}
	return &n, nil
}

// ListNewsletters returns every registered brand ordered by name.
func (s *SQLStore) ListNewsletters(ctx context.Context) ([]model.Newsletter, error) {
	var out []model.Newsletter
	if err := s.db.SelectContext(ctx, &out, `SELECT `+newsletterColumns+` FROM newsletters ORDER BY brand_name, id`); err != nil {
		return nil, fmt.Errorf("listing newsletters: %w", err)
	}
	return out, nil
}

// FindNewsletterByAddress returns the brand whose field equals addr, or ErrNotFound.
func (s *SQLStore) FindNewsletterByAddress(ctx context.Context, field AddressField, addr string) (*model.Newsletter, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unknown address field %q", field)
	}
	addr = normalizeAddress(addr)
	if addr == "" {
		return nil, ErrNotFound
	}

	var n model.Newsletter
	query := s.db.Rebind(`SELECT ` + newsletterColumns + ` FROM newsletters WHERE ` + string(field) + ` = ? ORDER BY created_at, id LIMIT 1`)
	if err := getOne(ctx, s.db, &n, query, addr); err != nil {
		return nil, err
	}
	return &n, nil
}
