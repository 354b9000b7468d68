package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
// The SQL is kept to the subset shared by SQLite and PostgreSQL.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS users (
	id               TEXT PRIMARY KEY,
	mailbox_address  TEXT NOT NULL UNIQUE,
	mailbox_password TEXT NOT NULL DEFAULT '',
	mailbox_host     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS newsletters (
	id           TEXT PRIMARY KEY,
	brand_name   TEXT NOT NULL,
	brand_email  TEXT NOT NULL UNIQUE,
	second_email TEXT NOT NULL DEFAULT '',
	third_email  TEXT NOT NULL DEFAULT '',
	double_check INTEGER NOT NULL DEFAULT 0,
	image_url    TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL REFERENCES users(id),
	newsletter_id    TEXT NOT NULL REFERENCES newsletters(id),
	title            TEXT NOT NULL,
	body             TEXT NOT NULL DEFAULT '',
	plain_body       TEXT NOT NULL DEFAULT '',
	preview          TEXT NOT NULL DEFAULT '',
	date             TIMESTAMP NOT NULL,
	publish_year     INTEGER NOT NULL,
	publish_month    INTEGER NOT NULL,
	publish_day      INTEGER NOT NULL,
	mailbox_position INTEGER NOT NULL,
	is_visible       INTEGER NOT NULL DEFAULT 1,
	status           TEXT NOT NULL DEFAULT 'Unread',
	created_at       TIMESTAMP NOT NULL,
	UNIQUE (user_id, mailbox_position)
);

CREATE TABLE IF NOT EXISTS subscriptions (
	user_id       TEXT NOT NULL REFERENCES users(id),
	newsletter_id TEXT NOT NULL REFERENCES newsletters(id),
	status        TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, newsletter_id)
);

CREATE INDEX IF NOT EXISTS idx_articles_user_id ON articles(user_id);
CREATE INDEX IF NOT EXISTS idx_newsletters_second_email ON newsletters(second_email);
CREATE INDEX IF NOT EXISTS idx_newsletters_third_email ON newsletters(third_email);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS mailbox_skips (
	user_id    TEXT NOT NULL REFERENCES users(id),
	position   INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	sender     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, position)
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
