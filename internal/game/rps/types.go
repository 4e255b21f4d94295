// Package rps implements the rock-paper-scissors wager engine (가위바위보).
// A challenger escrows a stake, one opponent matches it inside the recruit window,
// spectators side-bet on either duellist, and the pot is settled when both throws
// are in or the betting window closes.
package rps

import (
	"fmt"
	"strings"
	"time"
)

// Choice is a single throw.
type Choice int

const (
	ChoiceNone Choice = iota
	Rock
	Paper
	Scissors
)

// Choices lists the three valid throws in button order.
var Choices = []Choice{Rock, Paper, Scissors}

// String returns the wire name of the throw.
func (c Choice) String() string {
	switch c {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	default:
		return "none"
	}
}

// Emoji returns the display glyph for the throw.
func (c Choice) Emoji() string {
	switch c {
	case Rock:
		return "✊"
	case Paper:
		return "✋"
	case Scissors:
		return "✌️"
	default:
		return "❔"
	}
}

// Valid reports whether c is one of Rock, Paper or Scissors.
func (c Choice) Valid() bool {
	return c == Rock || c == Paper || c == Scissors
}

// Beats reports whether c wins against other.
// Rock beats Scissors, Scissors beats Paper, Paper beats Rock.
func (c Choice) Beats(other Choice) bool {
	switch c {
	case Rock:
		return other == Scissors
	case Scissors:
		return other == Paper
	case Paper:
		return other == Rock
	default:
		return false
	}
}

// ParseChoice parses a throw name ("rock", "paper", "scissors").
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "r":
		return Rock, nil
	case "paper", "p":
		return Paper, nil
	case "scissors", "s":
		return Scissors, nil
	default:
		return ChoiceNone, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
}

// Side is what a contribution favors.
type Side string

const (
	SideChallenger Side = "challenger"
	SideOpponent   Side = "opponent"
	// SidePrincipal marks the base stake paid by a duellist to enter.
	SidePrincipal Side = "principal"
)

// ParseSide parses a side-bet side. Principal is not accepted.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideChallenger, SideOpponent:
		return Side(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Phase is the lifecycle state of a match.
type Phase string

const (
	PhaseRecruit    Phase = "recruit"
	PhaseBetting    Phase = "betting"
	PhaseResolving  Phase = "resolving"
	PhaseTerminated Phase = "terminated"
)

// Outcome is the result of a resolved match.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeChallenger Outcome = "challenger"
	OutcomeOpponent   Outcome = "opponent"
	OutcomeDraw       Outcome = "draw"
	// OutcomeCancelled is a recruit timeout: nobody joined, everything refunded.
	OutcomeCancelled Outcome = "cancelled"
)

// Actor identifies a chat user acting on a match.
type Actor struct {
	ID   int64
	Name string
}

// Contribution is one escrowed amount in a match ledger.
type Contribution struct {
	Seq    int
	UserID int64
	Amount int64
	Favors Side
	At     time.Time
}

// DecideOutcome applies the rock-paper-scissors relation and the forfeit rule.
// A missing throw (ChoiceNone) forfeits; two missing throws or equal throws draw.
func DecideOutcome(challenger, opponent Choice) Outcome {
	switch {
	case !challenger.Valid() && !opponent.Valid():
		return OutcomeDraw
	case !opponent.Valid():
		return OutcomeChallenger
	case !challenger.Valid():
		return OutcomeOpponent
	case challenger == opponent:
		return OutcomeDraw
	case challenger.Beats(opponent):
		return OutcomeChallenger
	default:
		return OutcomeOpponent
	}
}
