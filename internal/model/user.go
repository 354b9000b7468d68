package model

import "time"

// User is a subscriber whose dedicated mailbox receives newsletters.
// The account subsystem owns this record; ingestion only reads it.
type User struct {
	// ID is the unique identifier for this user.
	ID string `json:"id" db:"id"`

	// MailboxAddress is the login for the user's subscription mailbox.
	MailboxAddress string `json:"mailbox_address" db:"mailbox_address"`

	// MailboxPassword is the mailbox password, or a "keyring:<key>"
	// reference resolved at dial time.
	MailboxPassword string `json:"-" db:"mailbox_password"`

	// MailboxHost overrides the configured mailbox host when non-empty.
	MailboxHost string `json:"mailbox_host" db:"mailbox_host"`

	// CreatedAt is when the user was registered.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ArticleCount is the number of articles already ingested for the user.
	ArticleCount int `json:"article_count" db:"article_count"`

	// SkippedCount is the number of mailbox messages passed over without
	// producing an article (unknown sender, unparseable message).
	SkippedCount int `json:"skipped_count" db:"skipped_count"`
}

// Cursor returns the mailbox position of the last message already handled.
// Messages at positions <= Cursor are never fetched again.
func (u User) Cursor() int {
	return u.ArticleCount + u.SkippedCount
}
