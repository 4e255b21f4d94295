package rps

import "time"

// MatchView is a read-only snapshot of a match for the presentation adapters.
type MatchView struct {
	ID string
	// Version orders views of the same match; a higher version is newer.
	Version    uint64
	ChannelID  int64
	Phase      Phase
	Challenger Actor
	// Opponent is the zero Actor until someone joins.
	Opponent   Actor
	BaseStake  int64
	Pot        int64
	SideTotals map[Side]int64
	Bets       []BetView
	// Thrown reports, per duellist ID, whether a throw has been submitted.
	Thrown       map[int64]bool
	SuggestedBet int64
	Remaining    int
	CreatedAt    time.Time

	// Populated only once Phase is PhaseTerminated.
	Outcome          Outcome
	ChallengerChoice Choice
	OpponentChoice   Choice
	Payouts          map[int64]int64
}

// BetView is an aggregated side bet with the bettor's display name.
type BetView struct {
	Actor  Actor
	Side   Side
	Amount int64
}

// HasOpponent reports whether the match has been joined.
func (v MatchView) HasOpponent() bool {
	return v.Opponent.ID != 0
}

// Terminated reports whether the match is settled.
func (v MatchView) Terminated() bool {
	return v.Phase == PhaseTerminated
}

// Winner returns the winning duellist for a decided match.
func (v MatchView) Winner() (Actor, bool) {
	switch v.Outcome {
	case OutcomeChallenger:
		return v.Challenger, true
	case OutcomeOpponent:
		return v.Opponent, true
	default:
		return Actor{}, false
	}
}

// SideName returns the duellist a side refers to.
func (v MatchView) SideName(side Side) string {
	switch side {
	case SideChallenger:
		return v.Challenger.Name
	case SideOpponent:
		if v.Opponent.Name == "" {
			return "opponent"
		}
		return v.Opponent.Name
	default:
		return string(side)
	}
}
