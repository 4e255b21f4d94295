// Package discord provides the Discord presentation adapter for RPS wagers.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"rps-wager-bot/internal/config"
	"rps-wager-bot/internal/game/rps"
	"rps-wager-bot/internal/service"
)

// shutdownTimeout bounds the refunds issued when the adapter stops.
const shutdownTimeout = 30 * time.Second

// Dependencies holds everything the Discord adapter needs.
type Dependencies struct {
	Config         *config.Config
	AccountService *service.AccountService
	// Coordinator is owned by the Discord adapter; its notifier is replaced.
	Coordinator *rps.Coordinator
}

// Bot is the Discord adapter.
type Bot struct {
	session        *discordgo.Session
	cfg            *config.Config
	accountService *service.AccountService
	coordinator    *rps.Coordinator
	notifier       *PanelNotifier
}

// New creates the Discord session and registers the interaction handler.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Discord.Token == "" {
		return nil, errors.New("discord token is required")
	}

	session, err := discordgo.New("Bot " + deps.Config.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	notifier := NewPanelNotifier(session)
	deps.Coordinator.SetNotifier(notifier)

	b := &Bot{
		session:        session,
		cfg:            deps.Config,
		accountService: deps.AccountService,
		coordinator:    deps.Coordinator,
		notifier:       notifier,
	}
	session.AddHandler(b.onInteraction)

	return b, nil
}

// Commands returns the slash command definitions.
func Commands() []*discordgo.ApplicationCommand {
	minStake := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "rps",
			Description: "Challenge the channel to rock paper scissors for coins",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "stake", Description: "Coins each duellist puts in", Required: true, MinValue: &minStake},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "house", Description: "Play against the house"},
			},
		},
		{
			Name:        "balance",
			Description: "Show your wallet balance",
		},
	}
}

// Run opens the gateway connection and blocks until ctx is done. Open matches
// are refunded before the session closes.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	appID := b.session.State.User.ID
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.Discord.GuildID, Commands()); err != nil {
		_ = b.session.Close()
		return fmt.Errorf("failed to register discord commands: %w", err)
	}
	log.Info().
		Str("bot", b.session.State.User.Username).
		Str("guild_id", b.cfg.Discord.GuildID).
		Msg("Discord bot started")

	<-ctx.Done()

	log.Info().Msg("Stopping Discord bot...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	b.coordinator.Shutdown(shutdownCtx)

	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic in interaction handler")
			respondEphemeral(s, i, "❌ Internal error, try again later")
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "rps":
			b.handleRPS(s, i)
		case "balance":
			b.handleBalance(s, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleButton(s, i)
	}
}

// interactionActor returns the engine actor of the interacting user.
func interactionActor(i *discordgo.InteractionCreate) (rps.Actor, error) {
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return rps.Actor{}, errors.New("interaction without user")
	}

	id, err := strconv.ParseInt(user.ID, 10, 64)
	if err != nil {
		return rps.Actor{}, fmt.Errorf("invalid user id %q: %w", user.ID, err)
	}

	name := user.GlobalName
	if name == "" {
		name = user.Username
	}
	return rps.Actor{ID: id, Name: name}, nil
}

// rpsOptions reads the /rps command options.
func rpsOptions(data discordgo.ApplicationCommandInteractionData) (stake int64, house bool) {
	for _, opt := range data.Options {
		switch opt.Name {
		case "stake":
			stake = opt.IntValue()
		case "house":
			house = opt.BoolValue()
		}
	}
	return stake, house
}

func (b *Bot) ensureActor(ctx context.Context, i *discordgo.InteractionCreate) (rps.Actor, error) {
	actor, err := interactionActor(i)
	if err != nil {
		return rps.Actor{}, err
	}
	if _, _, err := b.accountService.EnsureUser(ctx, actor.ID, actor.Name); err != nil {
		return rps.Actor{}, err
	}
	return actor, nil
}

func (b *Bot) handleRPS(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	if i.GuildID == "" {
		respondEphemeral(s, i, "❌ Rock paper scissors can only be played in servers")
		return
	}
	channelID, err := strconv.ParseInt(i.ChannelID, 10, 64)
	if err != nil {
		respondEphemeral(s, i, "❌ Unknown channel")
		return
	}

	actor, err := b.ensureActor(ctx, i)
	if err != nil {
		log.Error().Err(err).Msg("Failed to ensure discord user")
		respondEphemeral(s, i, "❌ "+rps.UserMessage(err))
		return
	}

	stake, house := rpsOptions(i.ApplicationCommandData())
	var view rps.MatchView
	if house {
		view, err = b.coordinator.CreateHouseMatch(ctx, channelID, actor, stake)
	} else {
		view, err = b.coordinator.CreateMatch(ctx, channelID, actor, stake)
	}
	if err != nil {
		if view.ID == "" {
			respondEphemeral(s, i, "❌ "+rps.UserMessage(err))
			return
		}
		log.Warn().Err(err).Str("match_id", view.ID).Msg("House match opened without the house")
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{BuildEmbed(view)},
			Components: BuildComponents(view),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("match_id", view.ID).Msg("Failed to send RPS panel")
		return
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		log.Error().Err(err).Str("match_id", view.ID).Msg("Failed to fetch RPS panel message")
		return
	}
	b.notifier.Track(view.ID, msg)

	if latest, err := b.coordinator.Snapshot(view.ID); err == nil {
		b.notifier.MatchUpdated(ctx, latest)
	}
}

func (b *Bot) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	actor, err := interactionActor(i)
	if err != nil {
		respondEphemeral(s, i, "❌ "+rps.UserMessage(err))
		return
	}
	user, _, err := b.accountService.EnsureUser(ctx, actor.ID, actor.Name)
	if err != nil {
		log.Error().Err(err).Int64("user_id", actor.ID).Msg("Failed to load balance")
		respondEphemeral(s, i, "❌ Could not load your balance, try again later")
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("💰 Balance: %d coins", user.Balance))
}

func (b *Bot) handleButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	action, matchID, ok := DecodeCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	actor, err := b.ensureActor(ctx, i)
	if err != nil {
		log.Error().Err(err).Msg("Failed to ensure discord user")
		respondEphemeral(s, i, "❌ "+rps.UserMessage(err))
		return
	}

	text, err := b.apply(ctx, action, matchID, actor)
	if err != nil {
		if !rps.IsUserError(err) {
			log.Warn().
				Err(err).
				Str("match_id", matchID).
				Int64("user_id", actor.ID).
				Str("action", action).
				Msg("RPS action rejected")
		}
		respondEphemeral(s, i, "❌ "+rps.UserMessage(err))
		return
	}
	respondEphemeral(s, i, text)
}

// apply performs a button action and returns the confirmation for the actor.
func (b *Bot) apply(ctx context.Context, action, matchID string, actor rps.Actor) (string, error) {
	switch action {
	case actionJoin:
		if _, err := b.coordinator.Join(ctx, matchID, actor); err != nil {
			return "", err
		}
		return "⚔️ You joined the match", nil
	case actionBetCh, actionBetOp:
		side := rps.SideChallenger
		if action == actionBetOp {
			side = rps.SideOpponent
		}
		amount, err := b.coordinator.SuggestedBet(matchID)
		if err != nil {
			return "", err
		}
		if _, err := b.coordinator.SideBet(ctx, matchID, actor, side, amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("💰 You bet %d", amount), nil
	default:
		choice, err := rps.ParseChoice(action)
		if err != nil {
			return "", err
		}
		if _, err := b.coordinator.Submit(ctx, matchID, actor.ID, choice); err != nil {
			return "", err
		}
		return "You threw " + choice.Emoji(), nil
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Debug().Err(err).Msg("Failed to respond to interaction")
	}
}
