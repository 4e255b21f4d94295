// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rps-wager-bot/internal/config"
	"rps-wager-bot/internal/game/rps"
	"rps-wager-bot/internal/handler"
	"rps-wager-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot         *tele.Bot
	cfg         *config.Config
	coordinator *rps.Coordinator

	// Handlers
	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
	rpsHandler     *handler.RPSHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config                *config.Config
	AccountService        *service.AccountService
	ReconciliationService *service.ReconciliationService
	// Coordinator is owned by the Telegram adapter; its notifier is replaced.
	Coordinator *rps.Coordinator
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	notifier := handler.NewPanelNotifier(teleBot)
	deps.Coordinator.SetNotifier(notifier)

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		coordinator:    deps.Coordinator,
		accountHandler: handler.NewAccountHandler(deps.AccountService),
		adminHandler:   handler.NewAdminHandler(deps.ReconciliationService),
		rpsHandler:     handler.NewRPSHandler(deps.AccountService, deps.Coordinator, notifier),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/rps_unpaid", b.adminHandler.HandleUnpaid)
	adminGroup.Handle("/rps_repay", b.adminHandler.HandleRepay)

	// Game handlers
	b.bot.Handle("/rps", b.rpsHandler.HandleRPS)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to appropriate handlers
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	if strings.HasPrefix(data, handler.RPSCallbackPrefix) {
		return b.rpsHandler.HandleRPSCallback(c)
	}

	return c.Respond()
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("bot", b.bot.Me.Username).Msg("Starting Telegram bot...")
	b.bot.Start()
}

// Stop refunds every open match and stops polling.
func (b *Bot) Stop(ctx context.Context) {
	log.Info().Msg("Stopping Telegram bot...")
	b.coordinator.Shutdown(ctx)
	b.bot.Stop()
}
