package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPublishDateRollover(t *testing.T) {
	a := Article{Date: time.Date(2024, 1, 31, 16, 0, 0, 0, time.UTC)}
	a.SetPublishDate(time.FixedZone("KST", 9*60*60))

	assert.Equal(t, 2024, a.PublishYear)
	assert.Equal(t, 2, a.PublishMonth)
	assert.Equal(t, 1, a.PublishDay)
}

func TestSetPublishDateProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	kst := time.FixedZone("KST", 9*60*60)

	properties.Property("publish date is the UTC date nine hours later", prop.ForAll(
		func(sec int64) bool {
			utc := time.Unix(sec, 0).UTC()
			a := Article{Date: utc}
			a.SetPublishDate(kst)

			shifted := utc.Add(9 * time.Hour)
			return a.PublishYear == shifted.Year() &&
				a.PublishMonth == int(shifted.Month()) &&
				a.PublishDay == shifted.Day()
		},
		gen.Int64Range(0, 4102444800), // 1970 to 2100
	))

	properties.TestingRun(t)
}

func TestUserCursor(t *testing.T) {
	u := User{ArticleCount: 5, SkippedCount: 2}
	assert.Equal(t, 7, u.Cursor())
}

func TestNewsletterAddresses(t *testing.T) {
	n := Newsletter{BrandEmail: "a@x", ThirdEmail: "c@x"}
	assert.Equal(t, []string{"a@x", "c@x"}, n.Addresses())
}

func TestNewSubscriptionViewDoesNotMutate(t *testing.T) {
	n := Newsletter{ID: "n1", BrandName: "Brand"}
	s := Subscription{UserID: "u1", NewsletterID: "n1", Status: SubscriptionPaused}

	v := NewSubscriptionView(n, s)
	assert.True(t, v.IsPaused)
	assert.False(t, v.IsSubscribed)
	assert.Equal(t, "Brand", v.BrandName)
	assert.Equal(t, Newsletter{ID: "n1", BrandName: "Brand"}, n)
	assert.Equal(t, SubscriptionPaused, s.Status)
}

func TestSubscriptionStatusValid(t *testing.T) {
	assert.True(t, SubscriptionCheck.Valid())
	assert.False(t, SubscriptionStatus("ACTIVE").Valid())
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, "pop3", cfg.Mailbox.Protocol)
	assert.Equal(t, 995, cfg.Mailbox.Port)
	assert.True(t, cfg.Mailbox.TLS)
	assert.Equal(t, 3, cfg.Ingest.Concurrency)
	assert.Equal(t, time.Minute, cfg.Ingest.Interval())
	assert.Equal(t, 5*time.Minute, cfg.Mailbox.SessionTimeout())
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, cfg.Ingest.Location()).Zone()
	assert.Equal(t, 9*60*60, offset)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())

	path := filepath.Join(t.TempDir(), "mailingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mailbox:
  protocol: imap
  host: imap.example.com
  port: 993
ingest:
  concurrency: 5
`), 0o600))
	t.Setenv("MAILINGEST_MAILBOX_HOST", "override.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "imap", cfg.Mailbox.Protocol)
	assert.Equal(t, "override.example.com", cfg.Mailbox.Host)
	assert.Equal(t, 993, cfg.Mailbox.Port)
	assert.Equal(t, 5, cfg.Ingest.Concurrency)
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		return &AppConfig{
			Database: DatabaseConfig{Driver: "sqlite"},
			Mailbox:  MailboxConfig{Protocol: "pop3", DialTimeoutSec: 1, SessionTimeoutSec: 1, FetchTimeoutSec: 1},
			Ingest:   IngestConfig{Concurrency: 3, IntervalSec: 60, UTCOffsetHours: 9},
		}
	}
	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Ingest.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Mailbox.Protocol = "smtp"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Mailbox.FetchTimeoutSec = 0
	assert.Error(t, cfg.Validate())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
