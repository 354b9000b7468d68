package model

import "time"

// Read status values for an article.
const (
	ArticleUnread = "Unread"
	ArticleRead   = "Read"
)

// Article is a single ingested newsletter issue.
type Article struct {
	// ID is the unique identifier for this article.
	ID string `json:"id" db:"id"`

	// UserID is the owner of the mailbox the issue arrived in.
	UserID string `json:"user_id" db:"user_id"`

	// NewsletterID is the brand that sent the issue.
	NewsletterID string `json:"newsletter_id" db:"newsletter_id"`

	// Title is the mail subject.
	Title string `json:"title" db:"title"`

	// Body is the raw HTML body, or the plain-text body when no HTML part exists.
	Body string `json:"body" db:"body"`

	// PlainBody is the tag-stripped body used for search.
	PlainBody string `json:"plain_body" db:"plain_body"`

	// Preview is a short excerpt shown in listings.
	Preview string `json:"preview" db:"preview"`

	// Date is the original send timestamp in UTC.
	Date time.Time `json:"date" db:"date"`

	// PublishYear, PublishMonth and PublishDay are the calendar date of
	// Date in the service's local time zone.
	PublishYear  int `json:"publish_year" db:"publish_year"`
	PublishMonth int `json:"publish_month" db:"publish_month"`
	PublishDay   int `json:"publish_day" db:"publish_day"`

	// MailboxPosition is the message's position in the user's mailbox.
	MailboxPosition int `json:"mailbox_position" db:"mailbox_position"`

	// IsVisible is false for issues received while the subscription was paused.
	IsVisible bool `json:"is_visible" db:"is_visible"`

	// Status is ArticleUnread or ArticleRead.
	Status string `json:"status" db:"status"`

	// CreatedAt is when the article was stored.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SetPublishDate fills the publish calendar fields from Date as seen in loc.
func (a *Article) SetPublishDate(loc *time.Location) {
	local := a.Date.In(loc)
	a.PublishYear = local.Year()
	a.PublishMonth = int(local.Month())
	a.PublishDay = local.Day()
}

// SkippedMessage records a mailbox position that was passed over without
// producing an article, so the mailbox cursor still advances past it.
type SkippedMessage struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Position  int       `json:"position" db:"position"`
	Reason    string    `json:"reason" db:"reason"`
	Sender    string    `json:"sender" db:"sender"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Skip reasons.
const (
	SkipUnknownSender = "unknown_sender"
	SkipParseError    = "parse_error"
)
