package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rps-wager-bot/internal/model"
	"rps-wager-bot/internal/service"
)

// unpaidListLimit caps the rows shown by /rps_unpaid.
const unpaidListLimit = 20

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	reconciliation *service.ReconciliationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reconciliation *service.ReconciliationService) *AdminHandler {
	return &AdminHandler{reconciliation: reconciliation}
}

// HandleUnpaid handles the /rps_unpaid command.
// Lists settlement credits that could not be paid out.
func (h *AdminHandler) HandleUnpaid(c tele.Context) error {
	ctx := context.Background()

	credits, err := h.reconciliation.Pending(ctx, unpaidListLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list unpaid credits")
		return c.Reply("❌ Could not load unpaid credits")
	}
	total, err := h.reconciliation.PendingCount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count unpaid credits")
		return c.Reply("❌ Could not load unpaid credits")
	}

	return c.Reply(FormatUnpaid(credits, total))
}

// HandleRepay handles the /rps_repay command.
// Format: /rps_repay <credit_id>
func (h *AdminHandler) HandleRepay(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /rps_repay <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ The id must be a number")
	}

	credit, err := h.reconciliation.Retry(ctx, id)
	switch {
	case errors.Is(err, service.ErrCreditNotFound):
		return c.Reply(fmt.Sprintf("❌ No unpaid credit #%d", id))
	case errors.Is(err, service.ErrCreditAlreadyResolved):
		return c.Reply(fmt.Sprintf("ℹ️ Credit #%d was already repaid", id))
	case err != nil:
		log.Error().Err(err).Int64("credit_id", id).Msg("Repayment failed")
		return c.Reply(fmt.Sprintf("❌ Repayment of #%d failed, it stays pending", id))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("credit_id", id).
		Int64("user_id", credit.UserID).
		Int64("amount", credit.Amount).
		Str("operation", "rps_repay").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ Repaid #%d: %d coins to %d", id, credit.Amount, credit.UserID))
}

// FormatUnpaid formats the pending unpaid credits.
func FormatUnpaid(credits []*model.UnpaidCredit, total int64) string {
	if len(credits) == 0 {
		return "✅ No unpaid credits"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ Unpaid credits (%d)\n", total)
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	for _, cr := range credits {
		fmt.Fprintf(&sb, "#%d user %d: %d (%s) match %s\n", cr.ID, cr.UserID, cr.Amount, txLabel(cr.Reason), shortID(cr.MatchID))
	}
	if int64(len(credits)) < total {
		fmt.Fprintf(&sb, "... and %d more\n", total-int64(len(credits)))
	}
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	sb.WriteString("/rps_repay <id> to retry")
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
