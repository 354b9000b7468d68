package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newdok/mailingest/internal/ingest"
	"github.com/newdok/mailingest/internal/scheduler"
	"github.com/newdok/mailingest/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion scheduler and HTTP trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret is required to serve")
			}

			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			sched := scheduler.New[ingest.RunSummary](orch, a.cfg.Ingest.Interval(), a.log)
			sched.RunOnStart = a.cfg.Ingest.RunOnStart
			sched.OnResult = logRunSummary(a.log)
			sched.Start(ctx)
			defer sched.Stop()

			// SIGHUP requests an immediate scheduled pass.
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go runOnSignal(ctx, hup, sched.RunNow)

			srv := server.New(a.store, orch, a.cfg.Server.JWTSecret, a.log)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(a.cfg.Server.Addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn("http shutdown", zap.Error(err))
			}
			return nil
		},
	}
}

// logRunSummary reports each scheduled run's outcome.
func logRunSummary(log *zap.Logger) func(ingest.RunSummary) {
	return func(s ingest.RunSummary) {
		fields := []zap.Field{
			zap.String("run_id", s.RunID),
			zap.String("status", string(s.Status)),
			zap.Int("users", len(s.Users)),
			zap.Int("ingested", s.Ingested()),
			zap.Int("failed", s.Failed()),
		}
		switch {
		case s.Status == ingest.RunFailed:
			log.Error("scheduled run failed", append(fields, zap.String("error", s.Error))...)
		case s.Failed() > 0:
			log.Warn("scheduled run finished with failures", fields...)
		default:
			log.Info("scheduled run finished", fields...)
		}
	}
}

func runOnSignal(ctx context.Context, sig <-chan os.Signal, fire func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			fire()
		}
	}
}

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion pass over every mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			summary := orch.Run(cmd.Context())
			fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary))

			if summary.Error != "" {
				return errors.New(summary.Error)
			}
			if n := summary.Failed(); n > 0 {
				return fmt.Errorf("%d of %d mailboxes failed", n, len(summary.Users))
			}
			return nil
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show each mailbox's ingestion cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderUsers(users))
			return nil
		},
	}
}
