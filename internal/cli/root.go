// Package cli implements the mailingest command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newdok/mailingest/internal/credential"
	"github.com/newdok/mailingest/internal/ingest"
	"github.com/newdok/mailingest/internal/logging"
	"github.com/newdok/mailingest/internal/mailbox"
	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/store"
)

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	configPath string

	cfg   *model.AppConfig
	log   *zap.Logger
	store *store.SQLStore
}

// newRootCommand builds the command tree. The returned app owns the store
// opened by whichever subcommand runs; callers close it afterwards.
func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "mailingest",
		Short: "Ingest newsletter issues from subscriber mailboxes",
		Long: `mailingest pulls newsletter mail from each reader's mailbox, matches
the sender to a registered brand, and stores the issue as an article.

Examples:
  mailingest serve                          # scheduler + HTTP trigger
  mailingest run                            # one ingestion pass
  mailingest status                         # per-mailbox cursor
  mailingest brand add                      # register a brand
  mailingest user add --address a@b.c       # register a reader mailbox
  mailingest subscription pause --user ID --newsletter ID`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", model.DefaultConfigPath, "path to the YAML config file")

	root.AddCommand(
		newServeCommand(a),
		newRunCommand(a),
		newStatusCommand(a),
		newBrandCommand(a),
		newUserCommand(a),
		newSubscriptionCommand(a),
	)

	return root, a
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the command's context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCommand()
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "closing store: %v\n", cerr)
	}
	if err != nil {
		return 1
	}
	return 0
}

func (a *app) load() error {
	cfg, err := model.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.log = log

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}
	a.store = st

	return nil
}

func (a *app) close() error {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *app) keyringConfig() credential.Config {
	return credential.Config{Service: a.cfg.Keyring.Service, FileDir: a.cfg.Keyring.FileDir}
}

// orchestrator wires the configured mailbox backend and credential source.
func (a *app) orchestrator() (*ingest.Orchestrator, error) {
	mb := a.cfg.Mailbox

	dialer, err := mailbox.NewDialer(mb.Protocol, mb.DialTimeout())
	if err != nil {
		return nil, err
	}

	opts := ingest.Options{
		Concurrency:    a.cfg.Ingest.Concurrency,
		SessionTimeout: mb.SessionTimeout(),
		FetchTimeout:   mb.FetchTimeout(),
		Location:       a.cfg.Ingest.Location(),
		Mailbox: ingest.MailboxDefaults{
			Host:          mb.Host,
			Port:          mb.Port,
			TLS:           mb.TLS,
			TLSSkipVerify: mb.TLSSkipVerify,
		},
	}

	creds := credential.NewResolver(a.keyringConfig())
	return ingest.New(a.store, dialer, creds, opts, a.log), nil
}
