package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rps-wager-bot/internal/model"
	"rps-wager-bot/internal/service"
)

// historyLimit is the number of wager transactions shown by /history.
const historyLimit = 10

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// HandleStart handles the /start command.
// Creates the wallet with the initial balance if the user doesn't have one yet.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	actor := senderActor(sender)
	user, created, err := h.accountService.EnsureUser(ctx, actor.ID, actor.Name)
	if err != nil {
		log.Error().Err(err).Int64("user_id", actor.ID).Msg("Failed to create account")
		return c.Reply("❌ Could not create your account, try again later")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome %s!\n\n"+
				"Your wallet starts with %d coins.\n\n"+
				"Commands:\n"+
				"/rps <stake> - challenge the chat\n"+
				"/rps <stake> house - play against the house\n"+
				"/balance - show your balance\n"+
				"/history - your recent wagers",
			actor.Name, user.Balance,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back %s!\n\nBalance: %d coins", actor.Name, user.Balance))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	actor := senderActor(sender)
	user, _, err := h.accountService.EnsureUser(ctx, actor.ID, actor.Name)
	if err != nil {
		return c.Reply("❌ Could not load your balance, try again later")
	}

	return c.Reply(fmt.Sprintf("💰 Balance: %d coins", user.Balance))
}

// HandleHistory handles the /history command.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	txs, err := h.accountService.RecentWagers(ctx, sender.ID, historyLimit)
	if err != nil {
		return c.Reply("❌ Could not load your history, try again later")
	}
	net, err := h.accountService.WagerNet(ctx, sender.ID)
	if err != nil {
		return c.Reply("❌ Could not load your history, try again later")
	}

	return c.Reply(FormatHistory(txs, net))
}

// FormatHistory formats a user's wager transactions.
func FormatHistory(txs []*model.Transaction, net int64) string {
	if len(txs) == 0 {
		return "📋 No wagers yet"
	}

	var sb strings.Builder
	sb.WriteString("📋 Recent wagers\n")
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	for _, tx := range txs {
		fmt.Fprintf(&sb, "%s %+d %s\n", tx.CreatedAt.Format("01-02 15:04"), tx.Amount, txLabel(tx.Type))
	}
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "Net: %+d", net)
	return sb.String()
}

func txLabel(txType string) string {
	switch txType {
	case model.TxTypeRPSStake:
		return "stake"
	case model.TxTypeRPSSideBet:
		return "side bet"
	case model.TxTypeRPSPayout:
		return "payout"
	case model.TxTypeRPSRefund:
		return "refund"
	case model.TxTypeRPSRepay:
		return "repayment"
	default:
		return txType
	}
}
