package model

import "time"

// SubscriptionStatus is the lifecycle state of a user/brand subscription.
// The absence of a row is the initial state.
type SubscriptionStatus string

const (
	SubscriptionCheck     SubscriptionStatus = "CHECK"
	SubscriptionConfirmed SubscriptionStatus = "CONFIRMED"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionCheck, SubscriptionConfirmed, SubscriptionPaused:
		return true
	}
	return false
}

// Subscription links a user to a newsletter brand. There is at most one
// per (UserID, NewsletterID) pair.
type Subscription struct {
	UserID       string             `json:"user_id" db:"user_id"`
	NewsletterID string             `json:"newsletter_id" db:"newsletter_id"`
	Status       SubscriptionStatus `json:"status" db:"status"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// SubscriptionView is the read shape returned to API callers: a brand
// together with fields derived from the caller's subscription.
type SubscriptionView struct {
	NewsletterID string             `json:"newsletterId"`
	BrandName    string             `json:"brandName"`
	ImageURL     string             `json:"imageUrl,omitempty"`
	Status       SubscriptionStatus `json:"status"`
	IsSubscribed bool               `json:"isSubscribed"`
	IsPaused     bool               `json:"isPaused"`
	Since        time.Time          `json:"since"`
}

// NewSubscriptionView composes a view from a fetched brand and subscription.
// Neither argument is modified.
func NewSubscriptionView(n Newsletter, s Subscription) SubscriptionView {
	return SubscriptionView{
		NewsletterID: n.ID,
		BrandName:    n.BrandName,
		ImageURL:     n.ImageURL,
		Status:       s.Status,
		IsSubscribed: s.Status == SubscriptionConfirmed,
		IsPaused:     s.Status == SubscriptionPaused,
		Since:        s.CreatedAt,
	}
}
