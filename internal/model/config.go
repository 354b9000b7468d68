package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP trigger surface settings.
type ServerConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// DatabaseConfig selects the article store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// MailboxConfig holds the mail retrieval settings shared by every user mailbox.
type MailboxConfig struct {
	// Protocol is "pop3" or "imap".
	Protocol          string `mapstructure:"protocol" yaml:"protocol"`
	Host              string `mapstructure:"host" yaml:"host"`
	Port              int    `mapstructure:"port" yaml:"port"`
	TLS               bool   `mapstructure:"tls" yaml:"tls"`
	TLSSkipVerify     bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
	DialTimeoutSec    int    `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec"`
	SessionTimeoutSec int    `mapstructure:"session_timeout_sec" yaml:"session_timeout_sec"`
	FetchTimeoutSec   int    `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
}

// DialTimeout returns the connect timeout.
func (m MailboxConfig) DialTimeout() time.Duration {
	return time.Duration(m.DialTimeoutSec) * time.Second
}

// SessionTimeout returns the upper bound on one user's mailbox session.
func (m MailboxConfig) SessionTimeout() time.Duration {
	return time.Duration(m.SessionTimeoutSec) * time.Second
}

// FetchTimeout returns the upper bound on a single message retrieval.
func (m MailboxConfig) FetchTimeout() time.Duration {
	return time.Duration(m.FetchTimeoutSec) * time.Second
}

// IngestConfig controls the ingestion run.
type IngestConfig struct {
	// Concurrency is how many user mailboxes are processed at once.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// IntervalSec is the period of the recurring trigger.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// UTCOffsetHours is the local time zone used for publish dates.
	UTCOffsetHours int `mapstructure:"utc_offset_hours" yaml:"utc_offset_hours"`

	// RunOnStart fires one run as soon as the scheduler starts.
	RunOnStart bool `mapstructure:"run_on_start" yaml:"run_on_start"`
}

// Interval returns the recurring trigger period.
func (i IngestConfig) Interval() time.Duration {
	return time.Duration(i.IntervalSec) * time.Second
}

// Location returns the fixed-offset zone for publish dates.
func (i IngestConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", i.UTCOffsetHours), i.UTCOffsetHours*60*60)
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// KeyringConfig locates stored mailbox secrets.
type KeyringConfig struct {
	Service string `mapstructure:"service" yaml:"service"`
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox" yaml:"mailbox"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Keyring  KeyringConfig  `mapstructure:"keyring" yaml:"keyring"`
}

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "mailingest.yaml"

// envPrefix namespaces environment overrides, e.g. MAILINGEST_MAILBOX_HOST.
const envPrefix = "MAILINGEST"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mailingest.db")
	v.SetDefault("mailbox.protocol", "pop3")
	v.SetDefault("mailbox.host", "mail.newdok.store")
	v.SetDefault("mailbox.port", 995)
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("mailbox.tls_skip_verify", false)
	v.SetDefault("mailbox.dial_timeout_sec", 10)
	v.SetDefault("mailbox.session_timeout_sec", 300)
	v.SetDefault("mailbox.fetch_timeout_sec", 60)
	v.SetDefault("ingest.concurrency", 3)
	v.SetDefault("ingest.interval_sec", 60)
	v.SetDefault("ingest.utc_offset_hours", 9)
	v.SetDefault("ingest.run_on_start", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("keyring.service", "mailingest")
	v.SetDefault("keyring.file_dir", "~/.config/mailingest/credentials")
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// layered over defaults and under MAILINGEST_* environment variables.
// A missing file is not an error. A .env file in the working directory is
// loaded into the environment first when present.
func LoadConfig(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the ingestion pipeline cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Mailbox.Protocol {
	case "pop3", "imap":
	default:
		return fmt.Errorf("unsupported mailbox protocol %q", c.Mailbox.Protocol)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest.concurrency must be at least 1, got %d", c.Ingest.Concurrency)
	}
	if c.Ingest.IntervalSec < 1 {
		return fmt.Errorf("ingest.interval_sec must be positive, got %d", c.Ingest.IntervalSec)
	}
	if c.Mailbox.DialTimeoutSec < 1 || c.Mailbox.SessionTimeoutSec < 1 || c.Mailbox.FetchTimeoutSec < 1 {
		return errors.New("mailbox timeouts must be positive")
	}
	if c.Ingest.UTCOffsetHours < -12 || c.Ingest.UTCOffsetHours > 14 {
		return fmt.Errorf("ingest.utc_offset_hours out of range: %d", c.Ingest.UTCOffsetHours)
	}
	return nil
}
