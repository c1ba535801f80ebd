package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"agenda/internal/ics"
	appLog "agenda/internal/log"
	"agenda/internal/web"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and refresh subscriptions on the configured schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()
			if c.IsSet("listen") {
				e.cfg.Listen = c.String("listen")
			}

			appLog.Info("agenda starting", "version", version, "listen", "http://"+e.cfg.Listen)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			sources := e.sources()
			im := e.importer()
			refresh := func(ctx context.Context) error {
				_, err := im.Refresh(ctx, sources)
				return err
			}

			var opts web.Options
			if len(sources) > 0 {
				opts.Refresh = refresh
				sched, err := startRefreshSchedule(ctx, e.cfg.Refresh, im, sources)
				if err != nil {
					return err
				}
				defer func() { <-sched.Stop().Done() }()
			}

			srv := &http.Server{
				Addr:              e.cfg.Listen,
				Handler:           web.NewServer(e.cfg, e.store, opts).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				appLog.Error("http shutdown failed", err)
			}
			appLog.Info("agenda exiting")
			return nil
		},
	}
}

// startRefreshSchedule imports every subscription once in the background
// and then on each tick of expr (a standard 5-field cron expression).
func startRefreshSchedule(ctx context.Context, expr string, im *ics.Importer, sources []ics.Source) (*cron.Cron, error) {
	run := func() {
		if _, err := im.Refresh(ctx, sources); err != nil {
			appLog.Error("scheduled subscription refresh failed", err)
		}
	}

	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := sched.AddFunc(expr, run); err != nil {
		return nil, err
	}
	sched.Start()
	appLog.Info("subscription refresh scheduled", "cron", expr, "subscriptions", len(sources))

	go run()
	return sched, nil
}
