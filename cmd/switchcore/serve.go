package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/relaypay/switchcore/internal/callback"
	"github.com/relaypay/switchcore/internal/txn"
	"github.com/relaypay/switchcore/internal/workers"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Run every worker role in one supervised process",
	Flags: commonFlags,
	Action: func(ctx context.Context, cmd *cli.Command) error {
		logger := setupLogger(cmd)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return cli.Exit(err, 1)
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		watcher := &txn.Watcher{}
		st, closeStore, err := openStore(ctx, cfg, watcher, logger)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer closeStore()

		gw := gatewayClient(cfg)
		secrets := webhookSecretProvider(cmd)

		processor := callback.NewProcessor(st, cfg)
		ftc := workers.NewFTCWorker(st, gw, cfg)
		reversal := workers.NewReversalWorker(st, gw, cfg)
		tsq := workers.NewTSQWorker(st, gw, cfg)
		timeout := workers.NewTimeoutWorker(st, cfg)
		dispatcher := workers.NewDispatcher(st, secrets, cfg)

		var wg sync.WaitGroup
		for _, run := range []func(context.Context){
			processor.Run,
			ftc.Run,
			reversal.Run,
			tsq.Run,
			timeout.Run,
			dispatcher.Run,
		} {
			wg.Add(1)
			go func(run func(context.Context)) {
				defer wg.Done()
				run(ctx)
			}(run)
		}

		logger.Info("switchcore started", "roles", allRoles)
		<-ctx.Done()
		logger.Info("shutdown signal received, waiting for in-flight work to finish")
		wg.Wait()
		logger.Info("switchcore stopped")
		return nil
	},
}
