// Package main is the entry point for the RPS wager bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"rps-wager-bot/internal/bot"
	"rps-wager-bot/internal/config"
	"rps-wager-bot/internal/discord"
	"rps-wager-bot/internal/game/rps"
	"rps-wager-bot/internal/pkg/db"
	"rps-wager-bot/internal/pkg/lock"
	"rps-wager-bot/internal/repository"
	"rps-wager-bot/internal/service"
)

// shutdownTimeout bounds the refunds issued for open matches on exit.
const shutdownTimeout = 30 * time.Second

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configFlag := &cli.StringFlag{
		Name:    "config",
		Usage:   "directory containing config.yaml",
		Value:   "config",
		Sources: cli.EnvVars("BOT_CONFIG_DIR"),
	}

	cmd := &cli.Command{
		Name:   "bot",
		Usage:  "rock paper scissors wagers for Telegram and Discord",
		Flags:  []cli.Flag{configFlag},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Flags:  []cli.Flag{configFlag},
				Action: runMigrate,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("Bot exited with error")
	}
}

// setup loads configuration, connects to PostgreSQL and applies migrations.
func setup(ctx context.Context, cmd *cli.Command) (*config.Config, *db.Pool, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())
	log.Info().Msg("Configuration loaded successfully")

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		dbPool.Close()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	return cfg, dbPool, nil
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	_, dbPool, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	dbPool.Close()
	return nil
}

func runBot(ctx context.Context, cmd *cli.Command) error {
	cfg, dbPool, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	unpaidRepo := repository.NewUnpaidCreditRepository(dbPool.Pool)

	// Initialize services
	userLock := lock.NewUserLock()
	accountService := service.NewAccountService(userRepo, txRepo, cfg.Wallet.InitialBalance)
	walletService := service.NewWalletService(userRepo, userLock)
	reconciliationService := service.NewReconciliationService(unpaidRepo, walletService)

	rpsCfg := engineConfig(&cfg.Games.RPS)
	if rpsCfg.House.ID != 0 {
		house, _, err := accountService.EnsureUserWithBalance(ctx, rpsCfg.House.ID, rpsCfg.House.Name, cfg.Games.RPS.HouseInitialBalance)
		if err != nil {
			return fmt.Errorf("failed to ensure house account: %w", err)
		}
		log.Info().Int64("user_id", house.UserID).Int64("balance", house.Balance).Msg("House account ready")
	}

	if n, err := reconciliationService.PendingCount(ctx); err == nil && n > 0 {
		log.Warn().Int64("count", n).Msg("Unpaid RPS credits are waiting for reconciliation")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Bot.Token != "" {
		telegramBot, err := bot.New(&bot.Dependencies{
			Config:                cfg,
			AccountService:        accountService,
			ReconciliationService: reconciliationService,
			Coordinator:           rps.NewCoordinator(&rpsCfg, walletService, reconciliationService),
		})
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}

		g.Go(func() error {
			telegramBot.Start()
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			telegramBot.Stop(stopCtx)
			return nil
		})
	}

	if cfg.Discord.Token != "" {
		discordBot, err := discord.New(&discord.Dependencies{
			Config:         cfg,
			AccountService: accountService,
			Coordinator:    rps.NewCoordinator(&rpsCfg, walletService, reconciliationService),
		})
		if err != nil {
			return fmt.Errorf("failed to create discord bot: %w", err)
		}

		g.Go(func() error {
			return discordBot.Run(gctx)
		})
	}

	log.Info().
		Bool("telegram", cfg.Bot.Token != "").
		Bool("discord", cfg.Discord.Token != "").
		Msg("Bot is running")

	err = g.Wait()
	log.Info().Msg("Bot stopped gracefully")
	return err
}

// engineConfig maps the rps configuration section onto coordinator settings.
func engineConfig(c *config.RPSConfig) rps.Config {
	return rps.Config{
		RecruitWindow:        c.RecruitWindow(),
		BettingWindow:        c.BettingWindow(),
		MinStake:             c.MinStake,
		MaxStake:             c.MaxStake,
		House:                rps.Actor{ID: c.HouseUserID, Name: c.HouseName},
		CreditAttempts:       c.CreditMaxAttempts,
		CreditInitialBackoff: c.CreditInitialBackoff,
		CreditMaxBackoff:     c.CreditMaxBackoff,
		SettledRetention:     c.SettledRetention,
		DisplayInterval:      c.DisplayInterval,
	}
}
