package rps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"rps-wager-bot/internal/model"
)

// Match is one duel and its escrow ledger.
// All fields are guarded by mu; the methods below expect the caller to hold it.
type Match struct {
	mu sync.Mutex

	id         string
	channelID  int64
	challenger Actor
	opponent   Actor
	baseStake  int64
	phase      Phase
	choices    map[int64]Choice
	ledger     Ledger
	names      map[int64]string
	createdAt  time.Time
	timer      *Timer
	// version increases with every view taken.
	version uint64
	// done is closed once the match is retired.
	done chan struct{}

	outcome Outcome
	payouts map[int64]int64
}

func newMatch(id string, channelID int64, challenger Actor, stake int64, now time.Time) *Match {
	return &Match{
		id:         id,
		channelID:  channelID,
		challenger: challenger,
		baseStake:  stake,
		phase:      PhaseRecruit,
		choices:    make(map[int64]Choice),
		names:      map[int64]string{challenger.ID: challenger.Name},
		createdAt:  now,
		done:       make(chan struct{}),
	}
}

func (m *Match) live() bool {
	return m.phase == PhaseRecruit || m.phase == PhaseBetting
}

func (m *Match) isPrincipal(userID int64) bool {
	return userID == m.challenger.ID || (m.opponent.ID != 0 && userID == m.opponent.ID)
}

func (m *Match) remember(a Actor) {
	if a.Name != "" {
		m.names[a.ID] = a.Name
	}
}

// debit escrows amount from the wallet. The ledger is only appended after it succeeds.
func debit(ctx context.Context, w Wallet, userID, amount int64, reason string) error {
	if err := w.Debit(ctx, userID, amount, reason); err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrTransientWallet) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrTransientWallet, err)
	}
	return nil
}

func (m *Match) join(ctx context.Context, w Wallet, a Actor, window time.Duration, now time.Time) error {
	if m.phase != PhaseRecruit || m.opponent.ID != 0 {
		return ErrInvalidState
	}
	if a.ID == m.challenger.ID {
		return fmt.Errorf("%w: challenger cannot join own match", ErrWrongActor)
	}
	if err := debit(ctx, w, a.ID, m.baseStake, model.TxTypeRPSStake); err != nil {
		return err
	}
	m.ledger.Append(a.ID, m.baseStake, SidePrincipal, now)
	m.opponent = a
	m.remember(a)
	m.phase = PhaseBetting
	m.timer.Refresh(window)
	return nil
}

func (m *Match) sideBet(ctx context.Context, w Wallet, a Actor, side Side, amount int64, now time.Time) error {
	if m.phase != PhaseRecruit && m.phase != PhaseBetting {
		return ErrInvalidState
	}
	if m.isPrincipal(a.ID) {
		return fmt.Errorf("%w: duellists cannot side-bet", ErrWrongActor)
	}
	if side != SideChallenger && side != SideOpponent {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if amount < 1 {
		return ErrInvalidAmount
	}
	if err := debit(ctx, w, a.ID, amount, model.TxTypeRPSSideBet); err != nil {
		return err
	}
	m.ledger.Append(a.ID, amount, side, now)
	m.remember(a)
	return nil
}

// submit records a throw and reports whether both throws are now in.
func (m *Match) submit(userID int64, c Choice) (bool, error) {
	if !c.Valid() {
		return false, ErrInvalidChoice
	}
	if m.phase != PhaseBetting {
		return false, ErrInvalidState
	}
	if !m.isPrincipal(userID) {
		return false, fmt.Errorf("%w: only duellists may throw", ErrWrongActor)
	}
	if _, ok := m.choices[userID]; ok {
		return false, ErrAlreadyActed
	}
	m.choices[userID] = c
	_, ch := m.choices[m.challenger.ID]
	_, op := m.choices[m.opponent.ID]
	return ch && op, nil
}

// resolve computes the outcome and payouts and moves the match to Terminated.
func (m *Match) resolve() {
	m.timer.Cancel()
	m.phase = PhaseResolving

	if m.opponent.ID == 0 {
		m.outcome = OutcomeCancelled
	} else {
		m.outcome = DecideOutcome(m.choices[m.challenger.ID], m.choices[m.opponent.ID])
	}

	payouts, err := Settle(m.ledger.Entries(), m.challenger.ID, m.opponent.ID, m.outcome)
	if err != nil {
		log.Error().Err(err).Str("match_id", m.id).Msg("Settlement failed, refunding pot")
		payouts = Refund(m.ledger.Entries())
	}
	m.payouts = payouts
	m.phase = PhaseTerminated
}

// expire handles a timer firing. It reports whether the match terminated.
func (m *Match) expire(gen uint64) bool {
	if !m.timer.Current(gen) {
		return false
	}
	if !m.live() {
		return false
	}
	m.resolve()
	return true
}

func (m *Match) creditReason() string {
	if m.outcome == OutcomeDraw || m.outcome == OutcomeCancelled {
		return model.TxTypeRPSRefund
	}
	return model.TxTypeRPSPayout
}

func (m *Match) actor(userID int64) Actor {
	return Actor{ID: userID, Name: m.names[userID]}
}

func (m *Match) view() MatchView {
	m.version++
	v := MatchView{
		ID:         m.id,
		Version:    m.version,
		ChannelID:  m.channelID,
		Phase:      m.phase,
		Challenger: m.challenger,
		Opponent:   m.opponent,
		BaseStake:  m.baseStake,
		Pot:        m.ledger.Total(),
		SideTotals: map[Side]int64{
			SideChallenger: m.ledger.SideTotal(SideChallenger),
			SideOpponent:   m.ledger.SideTotal(SideOpponent),
			SidePrincipal:  m.ledger.SideTotal(SidePrincipal),
		},
		Thrown:    make(map[int64]bool),
		Remaining: m.timer.RemainingSeconds(),
		CreatedAt: m.createdAt,
	}
	v.SuggestedBet = SuggestedBet(v.Pot)

	for _, line := range m.ledger.BetLines() {
		v.Bets = append(v.Bets, BetView{Actor: m.actor(line.UserID), Side: line.Side, Amount: line.Amount})
	}

	v.Thrown[m.challenger.ID] = m.choices[m.challenger.ID].Valid()
	if m.opponent.ID != 0 {
		v.Thrown[m.opponent.ID] = m.choices[m.opponent.ID].Valid()
	}

	if m.phase == PhaseTerminated {
		v.Remaining = 0
		v.Outcome = m.outcome
		v.ChallengerChoice = m.choices[m.challenger.ID]
		v.OpponentChoice = m.choices[m.opponent.ID]
		v.Payouts = make(map[int64]int64, len(m.payouts))
		for k, amt := range m.payouts {
			v.Payouts[k] = amt
		}
	}
	return v
}
