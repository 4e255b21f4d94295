// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rps-wager-bot/internal/game/rps"
	"rps-wager-bot/internal/service"
)

var errRPSUsage = errors.New("usage: /rps <stake> [house]")

// RPSHandler handles rock-paper-scissors wager commands and buttons.
type RPSHandler struct {
	accountService *service.AccountService
	coordinator    *rps.Coordinator
	notifier       *PanelNotifier
}

// NewRPSHandler creates a new RPSHandler.
func NewRPSHandler(accountService *service.AccountService, coordinator *rps.Coordinator, notifier *PanelNotifier) *RPSHandler {
	return &RPSHandler{
		accountService: accountService,
		coordinator:    coordinator,
		notifier:       notifier,
	}
}

// parseRPSArgs parses "/rps <stake> [house]".
func parseRPSArgs(args []string) (stake int64, house bool, err error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, false, errRPSUsage
	}

	stake, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false, errRPSUsage
	}
	if stake <= 0 {
		return 0, false, rps.ErrInvalidAmount
	}

	if len(args) == 2 {
		if !strings.EqualFold(args[1], "house") {
			return 0, false, errRPSUsage
		}
		house = true
	}
	return stake, house, nil
}

// senderActor converts a Telegram user into an engine actor.
func senderActor(u *tele.User) rps.Actor {
	name := u.FirstName
	if u.Username != "" {
		name = "@" + u.Username
	}
	if name == "" {
		name = strconv.FormatInt(u.ID, 10)
	}
	return rps.Actor{ID: u.ID, Name: name}
}

// HandleRPS handles the /rps command to open a match.
func (h *RPSHandler) HandleRPS(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()

	if chat == nil || sender == nil {
		return nil
	}

	if chat.Type == tele.ChatPrivate {
		return c.Reply("❌ Rock paper scissors can only be played in groups")
	}

	stake, house, err := parseRPSArgs(c.Args())
	if err != nil {
		if errors.Is(err, errRPSUsage) {
			return c.Reply(errRPSUsage.Error())
		}
		return c.Reply("❌ " + rps.UserMessage(err))
	}

	actor := senderActor(sender)
	if _, _, err := h.accountService.EnsureUser(ctx, actor.ID, actor.Name); err != nil {
		log.Error().Err(err).Int64("user_id", actor.ID).Msg("Failed to ensure user")
		return c.Reply("❌ " + rps.UserMessage(err))
	}

	var view rps.MatchView
	if house {
		view, err = h.coordinator.CreateHouseMatch(ctx, chat.ID, actor, stake)
	} else {
		view, err = h.coordinator.CreateMatch(ctx, chat.ID, actor, stake)
	}
	if err != nil {
		// A house match whose house join failed is still open for humans.
		if view.ID == "" {
			return c.Reply("❌ " + rps.UserMessage(err))
		}
		log.Warn().Err(err).Str("match_id", view.ID).Msg("House match opened without the house")
	}

	panelMsg, err := c.Bot().Send(chat, FormatRPSPanel(view), panelOptions(view)...)
	if err != nil {
		log.Error().Err(err).Str("match_id", view.ID).Msg("Failed to send RPS panel")
		return nil
	}
	h.notifier.Track(view.ID, panelMsg)

	// The match may have moved on while the panel was being sent.
	if latest, err := h.coordinator.Snapshot(view.ID); err == nil {
		h.notifier.MatchUpdated(ctx, latest)
	}

	return nil
}

// HandleRPSCallback handles the match panel buttons.
func (h *RPSHandler) HandleRPSCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()

	if callback == nil || sender == nil {
		return nil
	}

	action, matchID, ok := DecodeRPSCallback(callback.Data)
	if !ok {
		return c.Respond()
	}

	actor := senderActor(sender)
	if _, _, err := h.accountService.EnsureUser(ctx, actor.ID, actor.Name); err != nil {
		log.Error().Err(err).Int64("user_id", actor.ID).Msg("Failed to ensure user")
		return respondError(c, err)
	}

	var text string
	var err error
	switch action {
	case actionJoin:
		_, err = h.coordinator.Join(ctx, matchID, actor)
		text = "⚔️ You joined the match"
	case actionBetCh, actionBetOp:
		side := rps.SideChallenger
		if action == actionBetOp {
			side = rps.SideOpponent
		}
		var amount int64
		amount, err = h.coordinator.SuggestedBet(matchID)
		if err == nil {
			_, err = h.coordinator.SideBet(ctx, matchID, actor, side, amount)
		}
		text = fmt.Sprintf("💰 You bet %d", amount)
	case actionRock, actionPaper, actionScissors:
		var choice rps.Choice
		choice, err = rps.ParseChoice(action)
		if err == nil {
			_, err = h.coordinator.Submit(ctx, matchID, actor.ID, choice)
		}
		text = "You threw " + choice.Emoji()
	default:
		return c.Respond()
	}

	if err != nil {
		if !rps.IsUserError(err) {
			log.Warn().
				Err(err).
				Str("match_id", matchID).
				Int64("user_id", actor.ID).
				Str("action", action).
				Msg("RPS action rejected")
		}
		return respondError(c, err)
	}

	return c.Respond(&tele.CallbackResponse{Text: text})
}

func respondError(c tele.Context, err error) error {
	return c.Respond(&tele.CallbackResponse{
		Text:      "❌ " + rps.UserMessage(err),
		ShowAlert: true,
	})
}
