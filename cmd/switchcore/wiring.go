package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/gateway"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/store/pg"
	"github.com/relaypay/switchcore/internal/txn"
	"github.com/relaypay/switchcore/internal/workers"
	"github.com/relaypay/switchcore/log"
)

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to a config file (optional; SWITCHCORE_* env vars always apply)",
		Aliases: []string{"c"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "Use the development console logger instead of the production one",
	},
	&cli.StringFlag{
		Name:  "webhook-secret",
		Usage: "Static HMAC secret used to sign outgoing webhooks for every institution",
	},
}

func setupLogger(cmd *cli.Command) *slog.Logger {
	logger := log.Console()
	if cmd.Bool("dev") {
		logger = log.Develop()
	}
	log.SetDefault(logger)
	return logger
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore builds the State Store. A Postgres DSN in config selects the
// durable backend; an empty one falls back to the in-memory store, which
// is convenient for local smoke-testing but never appropriate in
// production since it does not survive a process restart.
func openStore(ctx context.Context, cfg *config.Config, watcher *txn.Watcher, logger *slog.Logger) (store.Store, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("SWITCHCORE_DATABASE_URL is unset, running against the in-memory store")
		st := store.NewMemoryStore(watcher)
		return st, st.Close, nil
	}

	st, err := pg.New(ctx, cfg.DatabaseURL, cfg.DBPoolSize, watcher)
	if err != nil {
		return nil, nil, fmt.Errorf("connect store: %w", err)
	}
	return st, st.Close, nil
}

func webhookSecretProvider(cmd *cli.Command) workers.SecretProvider {
	secret := cmd.String("webhook-secret")
	if secret == "" {
		secret = os.Getenv("SWITCHCORE_WEBHOOK_SECRET")
	}
	return workers.NewStaticSecretProvider([]byte(secret))
}

// allRoles lists every worker role runnable standalone via `worker <name>`
// and collectively under `serve`.
var allRoles = []string{"callback-processor", "ftc", "reversal", "tsq", "timeout", "dispatcher"}

func gatewayClient(cfg *config.Config) *gateway.Client {
	return gateway.New(cfg.Gateway)
}
