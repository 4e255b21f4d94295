package handler

import (
	"fmt"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v3"

	"rps-wager-bot/internal/game/rps"
)

const (
	// RPSCallbackPrefix is the prefix for all RPS callback data
	RPSCallbackPrefix = "rps_"
)

// Callback actions.
const (
	actionJoin     = "join"
	actionBetCh    = "betch"
	actionBetOp    = "betop"
	actionRock     = "rock"
	actionPaper    = "paper"
	actionScissors = "scissors"
)

// EncodeRPSCallback encodes an action and match ID into callback data.
// Match IDs are UUIDs, so the result stays under Telegram's 64 byte limit.
func EncodeRPSCallback(action, matchID string) string {
	return fmt.Sprintf("%s%s_%s", RPSCallbackPrefix, action, matchID)
}

// DecodeRPSCallback decodes callback data into action and match ID.
func DecodeRPSCallback(data string) (action string, matchID string, ok bool) {
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, RPSCallbackPrefix) {
		return "", "", false
	}

	parts := strings.SplitN(strings.TrimPrefix(data, RPSCallbackPrefix), "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// BuildRPSPanel builds the inline keyboard for the match's phase.
// Layout:
//   - Recruit: [Join] / [Bet on challenger] [Bet on opponent]
//   - Betting: [Rock] [Paper] [Scissors] / [Bet on challenger] [Bet on opponent]
//
// A terminated match has no keyboard.
func BuildRPSPanel(v rps.MatchView) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	betRow := []tele.InlineButton{
		{
			Text: fmt.Sprintf("Bet %d on %s", v.SuggestedBet, v.SideName(rps.SideChallenger)),
			Data: EncodeRPSCallback(actionBetCh, v.ID),
		},
		{
			Text: fmt.Sprintf("Bet %d on %s", v.SuggestedBet, v.SideName(rps.SideOpponent)),
			Data: EncodeRPSCallback(actionBetOp, v.ID),
		},
	}

	switch v.Phase {
	case rps.PhaseRecruit:
		joinRow := []tele.InlineButton{
			{
				Text: fmt.Sprintf("⚔️ Join (%d)", v.BaseStake),
				Data: EncodeRPSCallback(actionJoin, v.ID),
			},
		}
		markup.InlineKeyboard = [][]tele.InlineButton{joinRow, betRow}
	case rps.PhaseBetting:
		throwRow := make([]tele.InlineButton, 0, len(rps.Choices))
		for _, c := range rps.Choices {
			throwRow = append(throwRow, tele.InlineButton{
				Text: c.Emoji() + " " + capitalize(c.String()),
				Data: EncodeRPSCallback(c.String(), v.ID),
			})
		}
		markup.InlineKeyboard = [][]tele.InlineButton{throwRow, betRow}
	default:
		return nil
	}

	return markup
}

// FormatRPSPanel formats the match message.
func FormatRPSPanel(v rps.MatchView) string {
	var sb strings.Builder

	switch v.Phase {
	case rps.PhaseRecruit:
		sb.WriteString("✊ Rock Paper Scissors - waiting for an opponent\n")
	case rps.PhaseBetting, rps.PhaseResolving:
		sb.WriteString("✊ Rock Paper Scissors - throw!\n")
	default:
		sb.WriteString("🏁 Rock Paper Scissors - settled\n")
	}
	sb.WriteString("━━━━━━━━━━━━━━━\n")

	opponent := "?"
	if v.HasOpponent() {
		opponent = v.Opponent.Name
	}
	fmt.Fprintf(&sb, "%s vs %s | stake %d\n", v.Challenger.Name, opponent, v.BaseStake)
	if !v.Terminated() {
		fmt.Fprintf(&sb, "⏰ %d s | 💰 pot %d\n", v.Remaining, v.Pot)
	} else {
		fmt.Fprintf(&sb, "💰 pot %d\n", v.Pot)
	}

	fmt.Fprintf(&sb, "Side bets: %s %d | %s %d\n",
		v.SideName(rps.SideChallenger), v.SideTotals[rps.SideChallenger],
		v.SideName(rps.SideOpponent), v.SideTotals[rps.SideOpponent])
	for _, b := range v.Bets {
		fmt.Fprintf(&sb, "• %s: %d on %s\n", b.Actor.Name, b.Amount, v.SideName(b.Side))
	}

	if v.Phase == rps.PhaseBetting {
		sb.WriteString(thrownLine(v.Challenger, v.Thrown))
		if v.HasOpponent() {
			sb.WriteString(thrownLine(v.Opponent, v.Thrown))
		}
	}

	if v.Terminated() {
		sb.WriteString("━━━━━━━━━━━━━━━\n")
		sb.WriteString(formatResult(v, participantNames(v)))
	}

	return sb.String()
}

func thrownLine(a rps.Actor, thrown map[int64]bool) string {
	if thrown[a.ID] {
		return fmt.Sprintf("✅ %s has thrown\n", a.Name)
	}
	return fmt.Sprintf("⌛ %s is thinking\n", a.Name)
}

func formatResult(v rps.MatchView, names map[int64]string) string {
	var sb strings.Builder

	switch v.Outcome {
	case rps.OutcomeCancelled:
		sb.WriteString("Nobody joined. Everyone was refunded.\n")
		return sb.String()
	case rps.OutcomeDraw:
		fmt.Fprintf(&sb, "%s vs %s: draw, everyone was refunded.\n",
			choiceLabel(v.ChallengerChoice), choiceLabel(v.OpponentChoice))
		return sb.String()
	}

	fmt.Fprintf(&sb, "%s %s vs %s %s\n",
		v.Challenger.Name, choiceLabel(v.ChallengerChoice),
		choiceLabel(v.OpponentChoice), v.Opponent.Name)
	if winner, ok := v.Winner(); ok {
		fmt.Fprintf(&sb, "🏆 %s wins\n", winner.Name)
	}

	ids := make([]int64, 0, len(v.Payouts))
	for id := range v.Payouts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if v.Payouts[ids[i]] != v.Payouts[ids[j]] {
			return v.Payouts[ids[i]] > v.Payouts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		if v.Payouts[id] == 0 {
			continue
		}
		name := names[id]
		if name == "" {
			name = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(&sb, "🎉 %s +%d\n", name, v.Payouts[id])
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func choiceLabel(c rps.Choice) string {
	if !c.Valid() {
		return "🚫 no throw"
	}
	return c.Emoji()
}

// participantNames maps every user in the view to a display name.
func participantNames(v rps.MatchView) map[int64]string {
	names := map[int64]string{v.Challenger.ID: v.Challenger.Name}
	if v.HasOpponent() {
		names[v.Opponent.ID] = v.Opponent.Name
	}
	for _, b := range v.Bets {
		if _, ok := names[b.Actor.ID]; !ok {
			names[b.Actor.ID] = b.Actor.Name
		}
	}
	return names
}
