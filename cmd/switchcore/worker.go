package main

import (
	"context"
	"fmt"
	"os/signal"
	"slices"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/relaypay/switchcore/internal/callback"
	"github.com/relaypay/switchcore/internal/txn"
	"github.com/relaypay/switchcore/internal/workers"
)

var workerCmd = &cli.Command{
	Name:      "worker",
	Usage:     "Run a single worker role, for independent scaling",
	ArgsUsage: "<" + "callback-processor|ftc|reversal|tsq|timeout|dispatcher" + ">",
	Flags:     commonFlags,
	Action: func(ctx context.Context, cmd *cli.Command) error {
		role := cmd.Args().First()
		if !slices.Contains(allRoles, role) {
			return cli.Exit(fmt.Sprintf("unknown worker role %q, must be one of %v", role, allRoles), 1)
		}

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

		var run func(context.Context)
		switch role {
		case "callback-processor":
			run = callback.NewProcessor(st, cfg).Run
		case "ftc":
			run = workers.NewFTCWorker(st, gw, cfg).Run
		case "reversal":
			run = workers.NewReversalWorker(st, gw, cfg).Run
		case "tsq":
			run = workers.NewTSQWorker(st, gw, cfg).Run
		case "timeout":
			run = workers.NewTimeoutWorker(st, cfg).Run
		case "dispatcher":
			run = workers.NewDispatcher(st, webhookSecretProvider(cmd), cfg).Run
		}

		logger.Info("worker started", "role", role)
		run(ctx)
		logger.Info("worker stopped", "role", role)
		return nil
	},
}
