package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/app/botapp"
	"github.com/ivankudzin/tgapp/chatguard/internal/config"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/logger"
)

func main() {
	cfgPath := flag.String("config", config.PathFromEnv(), "path to the yaml config")
	check := flag.Bool("check", false, "validate the config and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *cfgPath, err)
		os.Exit(1)
	}
	if cfg.Bot.Token == "" {
		fmt.Fprintln(os.Stderr, "BOT_TOKEN is required")
		os.Exit(1)
	}
	if *check {
		fmt.Printf("config %s is valid, %d seeded chats\n", *cfgPath, len(cfg.Bot.Chats))
		return
	}

	if err := run(*cfgPath, cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfgPath string, cfg config.Config) error {
	log, err := logger.New(cfg.Log.Level, cfg.Env, "chatguard-bot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting moderation bot",
		zap.String("config", cfgPath),
		zap.Bool("postgres", cfg.Postgres.DSN != ""),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("evaluate_all_categories", cfg.Moderation.EvaluateAllCategories),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := botapp.New(ctx, cfg, log)
	if err != nil {
		log.Error("create bot app", zap.Error(err))
		return err
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Error("bot app failed", zap.Error(err))
		return err
	}
	log.Info("moderation bot stopped")
	return nil
}
