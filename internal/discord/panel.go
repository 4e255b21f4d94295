package discord

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"rps-wager-bot/internal/game/rps"
)

// CustomIDPrefix is the prefix for all RPS button custom IDs.
const CustomIDPrefix = "rps:"

const (
	actionJoin  = "join"
	actionBetCh = "betch"
	actionBetOp = "betop"
)

const (
	colorOpen    = 0x5865F2
	colorSettled = 0x57F287
	colorVoid    = 0x99AAB5
)

// EncodeCustomID encodes a button action and match ID.
func EncodeCustomID(action, matchID string) string {
	return CustomIDPrefix + action + ":" + matchID
}

// DecodeCustomID decodes a button custom ID.
func DecodeCustomID(id string) (action string, matchID string, ok bool) {
	if !strings.HasPrefix(id, CustomIDPrefix) {
		return "", "", false
	}
	action, matchID, found := strings.Cut(strings.TrimPrefix(id, CustomIDPrefix), ":")
	if !found || action == "" || matchID == "" {
		return "", "", false
	}
	return action, matchID, true
}

// BuildComponents returns the button rows for the match's phase.
// A terminated match has none.
func BuildComponents(v rps.MatchView) []discordgo.MessageComponent {
	bets := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    fmt.Sprintf("Bet %d on %s", v.SuggestedBet, v.SideName(rps.SideChallenger)),
			Style:    discordgo.SecondaryButton,
			CustomID: EncodeCustomID(actionBetCh, v.ID),
		},
		discordgo.Button{
			Label:    fmt.Sprintf("Bet %d on %s", v.SuggestedBet, v.SideName(rps.SideOpponent)),
			Style:    discordgo.SecondaryButton,
			CustomID: EncodeCustomID(actionBetOp, v.ID),
		},
	}}

	switch v.Phase {
	case rps.PhaseRecruit:
		join := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    fmt.Sprintf("Join (%d)", v.BaseStake),
				Style:    discordgo.SuccessButton,
				CustomID: EncodeCustomID(actionJoin, v.ID),
				Emoji:    &discordgo.ComponentEmoji{Name: "⚔️"},
			},
		}}
		return []discordgo.MessageComponent{join, bets}
	case rps.PhaseBetting:
		throws := discordgo.ActionsRow{}
		for _, c := range rps.Choices {
			throws.Components = append(throws.Components, discordgo.Button{
				Label:    strings.ToUpper(c.String()[:1]) + c.String()[1:],
				Style:    discordgo.PrimaryButton,
				CustomID: EncodeCustomID(c.String(), v.ID),
				Emoji:    &discordgo.ComponentEmoji{Name: c.Emoji()},
			})
		}
		return []discordgo.MessageComponent{throws, bets}
	default:
		return []discordgo.MessageComponent{}
	}
}

// BuildEmbed renders the match.
func BuildEmbed(v rps.MatchView) *discordgo.MessageEmbed {
	opponent := "?"
	if v.HasOpponent() {
		opponent = v.Opponent.Name
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Rock Paper Scissors",
		Description: fmt.Sprintf("**%s** vs **%s** for %d", v.Challenger.Name, opponent, v.BaseStake),
		Color:       colorOpen,
	}

	switch v.Phase {
	case rps.PhaseRecruit:
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Waiting for an opponent, %d s left", v.Remaining)}
	case rps.PhaseBetting, rps.PhaseResolving:
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Throw! %d s left", v.Remaining)}
	}

	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Pot", Value: fmt.Sprintf("%d", v.Pot), Inline: true},
		&discordgo.MessageEmbedField{
			Name:   "On " + v.SideName(rps.SideChallenger),
			Value:  fmt.Sprintf("%d", v.SideTotals[rps.SideChallenger]),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "On " + v.SideName(rps.SideOpponent),
			Value:  fmt.Sprintf("%d", v.SideTotals[rps.SideOpponent]),
			Inline: true,
		},
	)

	if len(v.Bets) > 0 {
		lines := make([]string, 0, len(v.Bets))
		for _, b := range v.Bets {
			lines = append(lines, fmt.Sprintf("%s: %d on %s", b.Actor.Name, b.Amount, v.SideName(b.Side)))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Side bets", Value: strings.Join(lines, "\n")})
	}

	if v.Phase == rps.PhaseBetting {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Throws", Value: throwStatus(v)})
	}

	if v.Terminated() {
		embed.Footer = nil
		embed.Color = colorSettled
		if v.Outcome == rps.OutcomeCancelled || v.Outcome == rps.OutcomeDraw {
			embed.Color = colorVoid
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Result", Value: resultText(v)})
	}

	return embed
}

func throwStatus(v rps.MatchView) string {
	status := func(a rps.Actor) string {
		if v.Thrown[a.ID] {
			return "✅ " + a.Name
		}
		return "⌛ " + a.Name
	}
	return status(v.Challenger) + "\n" + status(v.Opponent)
}

func resultText(v rps.MatchView) string {
	switch v.Outcome {
	case rps.OutcomeCancelled:
		return "Nobody joined. Everyone was refunded."
	case rps.OutcomeDraw:
		return fmt.Sprintf("%s vs %s: draw, everyone was refunded.", v.ChallengerChoice.Emoji(), v.OpponentChoice.Emoji())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s vs %s %s\n", v.Challenger.Name, v.ChallengerChoice.Emoji(), v.OpponentChoice.Emoji(), v.Opponent.Name)
	if winner, ok := v.Winner(); ok {
		fmt.Fprintf(&sb, "🏆 **%s** wins\n", winner.Name)
	}

	names := map[int64]string{v.Challenger.ID: v.Challenger.Name, v.Opponent.ID: v.Opponent.Name}
	for _, b := range v.Bets {
		names[b.Actor.ID] = b.Actor.Name
	}
	ids := make([]int64, 0, len(v.Payouts))
	for id, amount := range v.Payouts {
		if amount > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if v.Payouts[ids[i]] != v.Payouts[ids[j]] {
			return v.Payouts[ids[i]] > v.Payouts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		fmt.Fprintf(&sb, "%s +%d\n", names[id], v.Payouts[id])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
