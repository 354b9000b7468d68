package store

import (
	"context"
	"errors"

	"github.com/newdok/mailingest/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// AddressField is a newsletter column holding a registered sending address.
type AddressField string

const (
	FieldBrandEmail  AddressField = "brand_email"
	FieldSecondEmail AddressField = "second_email"
	FieldThirdEmail  AddressField = "third_email"
)

// Valid reports whether f names a known address column.
func (f AddressField) Valid() bool {
	switch f {
	case FieldBrandEmail, FieldSecondEmail, FieldThirdEmail:
		return true
	}
	return false
}

// Store defines the persistence interface for users, newsletter brands,
// articles and subscriptions.
type Store interface {
	// === Users ===

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)

	// ListUsers returns every user with ArticleCount and SkippedCount filled.
	ListUsers(ctx context.Context) ([]model.User, error)

	// === Newsletters ===

	CreateNewsletter(ctx context.Context, n *model.Newsletter) error
	GetNewsletter(ctx context.Context, id string) (*model.Newsletter, error)
	ListNewsletters(ctx context.Context) ([]model.Newsletter, error)
	FindNewsletterByAddress(ctx context.Context, field AddressField, addr string) (*model.Newsletter, error)

	// === Articles ===

	ArticleCount(ctx context.Context, userID string) (int, error)
	ListArticles(ctx context.Context, userID string) ([]model.Article, error)

	// === Subscriptions ===

	// ListSubscriptions returns the user's subscriptions joined with their
	// brands. A nil status returns all of them.
	ListSubscriptions(ctx context.Context, userID string, status *model.SubscriptionStatus) ([]model.SubscriptionView, error)
	GetSubscription(ctx context.Context, userID, newsletterID string) (*model.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, userID, newsletterID string, status model.SubscriptionStatus) error

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of writes that must commit together when a message is ingested.
type Tx interface {
	GetSubscription(ctx context.Context, userID, newsletterID string) (*model.Subscription, error)
	CreateSubscription(ctx context.Context, s *model.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, userID, newsletterID string, status model.SubscriptionStatus) error
	CreateArticle(ctx context.Context, a *model.Article) error
	RecordSkip(ctx context.Context, s model.SkippedMessage) error
}
