package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/taskvip/walletcore/internal/app"
	"github.com/taskvip/walletcore/internal/config"
)

func main() {
	var cfg config.AppConfig
	var migrateOnly bool
	flag.StringVar(&cfg.ConfigPath, "config", "", "path to config.yaml (defaults to $WALLET_CONFIG or ./config.yaml)")
	flag.StringVar(&cfg.EnvFile, "env", ".env", "optional .env file loaded before the config")
	flag.BoolVar(&migrateOnly, "migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrateOnly {
		if err := app.Migrate(ctx, cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if err := app.RunServer(ctx, cfg); err != nil {
		log.Fatalf("walletd: %v", err)
	}
}
