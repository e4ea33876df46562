package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/cli/config"
	"github.com/m-mizutani/vault-sync/pkg/controller/audit"
	controller "github.com/m-mizutani/vault-sync/pkg/controller/http"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/usecase"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// queueSize bounds ops waiting for the sync worker. Producers block when it
// is full, which throttles full sync to the speed of the destination.
const queueSize = 1024

const shutdownTimeout = 10 * time.Second

func cmdRun() *cli.Command {
	var (
		syncCfg   config.Sync
		serverCfg config.Server
		sentryCfg config.Sentry
		slackCfg  config.Slack
	)

	flags := append(syncCfg.Flags(), serverCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start syncing secrets",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			flush, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			settings, err := syncCfg.Load()
			if err != nil {
				return err
			}
			logger.Info("Settings loaded", slog.String("file", syncCfg.File), slog.Any("settings", settings))

			filter, err := model.NewPathFilter(settings.Exclude)
			if err != nil {
				return err
			}

			src, err := connect(ctx, settings.Src, "src")
			if err != nil {
				return err
			}
			dst, err := connect(ctx, settings.Dst, "dst")
			if err != nil {
				return err
			}

			queue := make(chan model.SecretOp, queueSize)
			worker := usecase.NewSyncWorker(src.client, dst.client,
				usecase.WithPrefixes(settings.Src.Prefix, settings.Dst.Prefix),
				usecase.WithSyncFilter(filter),
				usecase.WithDryRun(syncCfg.DryRun),
			)
			syncer := usecase.NewFullSyncer(src.client, queue, settings.Src.Prefix,
				usecase.WithFullSyncFilter(filter),
				usecase.WithNotifier(slackCfg.Notifier()),
			)

			if syncCfg.Once {
				return runOnce(ctx, worker, syncer, queue)
			}

			d := &daemon{
				settings:  settings,
				serverCfg: serverCfg,
				src:       src,
				dst:       dst,
				queue:     queue,
				worker:    worker,
				syncer:    syncer,
				device:    usecase.NewAuditDevice(src.client, settings.ID, settings.ExternalAddress),
				listener:  audit.NewServer(settings.Bind, settings.Src.KV(), settings.Src.Prefix, queue),
			}
			return d.run(ctx)
		},
	}
}

// runOnce performs a single full sync and waits until the worker has
// applied every queued op
func runOnce(ctx context.Context, worker *usecase.SyncWorker, syncer *usecase.FullSyncer, queue chan model.SecretOp) error {
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx, queue) }()

	report := syncer.Run(ctx)
	close(queue)
	if err := <-done; err != nil {
		return err
	}

	stats := worker.Stats()
	ctxlog.From(ctx).Info("Single full sync completed",
		"written", stats.Written,
		"unchanged", stats.Unchanged,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)

	if report.Failed() {
		return goerr.New("full sync failed", goerr.V("error", report.Error))
	}
	if stats.Failed > 0 {
		return goerr.New("some secrets failed to sync", goerr.V("failed", stats.Failed))
	}
	return nil
}

type daemon struct {
	settings  *model.Config
	serverCfg config.Server
	src       *vaultSide
	dst       *vaultSide
	queue     chan model.SecretOp
	worker    *usecase.SyncWorker
	syncer    *usecase.FullSyncer
	device    *usecase.AuditDevice
	listener  *audit.Server
}

func (d *daemon) run(ctx context.Context) error {
	logger := ctxlog.From(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Registered before the device exists so that an early signal still
	// reaches the cleanup below.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// A device left over from an unclean exit would point at a dead socket,
	// and Vault blocks requests when no audit device can log them.
	d.device.Delete(ctx)

	if err := d.listener.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.worker.Run(gctx, d.queue) })
	g.Go(func() error { return d.listener.Serve(gctx) })
	g.Go(func() error { return d.src.renewer.Loop(gctx) })
	g.Go(func() error { return d.dst.renewer.Loop(gctx) })

	if err := d.device.Add(ctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	g.Go(func() error { return d.syncer.Loop(gctx, d.settings.Interval()) })

	var server *controller.Server
	if d.serverCfg.Enabled() {
		var err error
		server, err = controller.NewServer(ctx,
			usecase.NewSyncStatus(d.worker, d.syncer, d.queue),
			controller.WithAddr(d.serverCfg.Addr),
		)
		if err != nil {
			return goerr.Wrap(err, "failed to create HTTP server")
		}

		g.Go(func() error {
			logger.Info("HTTP server starting", slog.String("addr", d.serverCfg.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return goerr.Wrap(err, "HTTP server failed")
			}
			return nil
		})
	}

	select {
	case <-gctx.Done():
		logger.Info("Context cancelled, shutting down...")
	case sig := <-sigChan:
		logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
	}

	// Remove the device before closing the listener so Vault does not try
	// to log into a closed socket.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	d.device.Delete(shutdownCtx)

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shutdown HTTP server gracefully", "error", err)
		}
	}

	cancel()
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
