package rps

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rps-wager-bot/internal/model"
)

// Default timings and retry policy.
const (
	DefaultRecruitWindow        = 30 * time.Second
	DefaultBettingWindow        = 30 * time.Second
	DefaultCreditAttempts       = 5
	DefaultCreditInitialBackoff = 200 * time.Millisecond
	DefaultCreditMaxBackoff     = 5 * time.Second
	DefaultSettledRetention     = 10 * time.Minute
	DefaultDisplayInterval      = time.Second
)

// Config holds coordinator settings.
type Config struct {
	RecruitWindow time.Duration
	BettingWindow time.Duration
	MinStake      int64
	// MaxStake of 0 means unlimited.
	MaxStake int64
	// House is the engine-controlled opponent. A zero ID disables house play.
	House Actor

	CreditAttempts       int
	CreditInitialBackoff time.Duration
	CreditMaxBackoff     time.Duration
	SettledRetention     time.Duration
	// DisplayInterval is how often a live match's view is pushed for the countdown.
	DisplayInterval time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.RecruitWindow <= 0 {
		out.RecruitWindow = DefaultRecruitWindow
	}
	if out.BettingWindow <= 0 {
		out.BettingWindow = DefaultBettingWindow
	}
	if out.MinStake < 1 {
		out.MinStake = 1
	}
	if out.CreditAttempts < 1 {
		out.CreditAttempts = DefaultCreditAttempts
	}
	if out.CreditInitialBackoff <= 0 {
		out.CreditInitialBackoff = DefaultCreditInitialBackoff
	}
	if out.CreditMaxBackoff <= 0 {
		out.CreditMaxBackoff = DefaultCreditMaxBackoff
	}
	if out.SettledRetention <= 0 {
		out.SettledRetention = DefaultSettledRetention
	}
	if out.DisplayInterval <= 0 {
		out.DisplayInterval = DefaultDisplayInterval
	}
	return out
}

type settledView struct {
	view    MatchView
	expires time.Time
}

// Coordinator owns every live match of one adapter and enforces the
// one-match-per-role rule across them.
//
// Lock order is coordinator then match. The coordinator lock is never
// acquired while a match lock is held.
type Coordinator struct {
	cfg        Config
	wallet     Wallet
	reconciler Reconciler

	mu           sync.Mutex
	matches      map[string]*Match
	byChallenger map[int64]string
	byOpponent   map[int64]string
	settled      map[string]settledView
	notifier     Notifier

	rngMu sync.Mutex
	rng   *rand.Rand

	newID func() string
	now   func() time.Time
}

// NewCoordinator creates a coordinator. reconciler may be nil, in which case
// exhausted credits are only logged.
func NewCoordinator(cfg *Config, wallet Wallet, reconciler Reconciler) *Coordinator {
	return &Coordinator{
		cfg:          cfg.withDefaults(),
		wallet:       wallet,
		reconciler:   reconciler,
		matches:      make(map[string]*Match),
		byChallenger: make(map[int64]string),
		byOpponent:   make(map[int64]string),
		settled:      make(map[string]settledView),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:        func() string { return uuid.NewString() },
		now:          time.Now,
	}
}

// SetNotifier installs the presentation callback.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = n
}

// Config returns the effective settings.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// HouseEnabled reports whether house matches can be created.
func (c *Coordinator) HouseEnabled() bool {
	return c.cfg.House.ID != 0
}

func (c *Coordinator) validStake(stake int64) error {
	if stake < c.cfg.MinStake {
		return fmt.Errorf("%w: minimum is %d", ErrStakeOutOfRange, c.cfg.MinStake)
	}
	if c.cfg.MaxStake > 0 && stake > c.cfg.MaxStake {
		return fmt.Errorf("%w: maximum is %d", ErrStakeOutOfRange, c.cfg.MaxStake)
	}
	return nil
}

// CreateMatch escrows the challenger's stake and opens a match in Recruit.
func (c *Coordinator) CreateMatch(ctx context.Context, channelID int64, challenger Actor, stake int64) (MatchView, error) {
	if stake < 1 {
		return MatchView{}, ErrInvalidAmount
	}
	if err := c.validStake(stake); err != nil {
		return MatchView{}, err
	}

	id := c.newID()

	c.mu.Lock()
	if _, busy := c.byChallenger[challenger.ID]; busy {
		c.mu.Unlock()
		return MatchView{}, ErrDuplicateMatch
	}
	c.byChallenger[challenger.ID] = id
	c.mu.Unlock()

	if err := debit(ctx, c.wallet, challenger.ID, stake, model.TxTypeRPSStake); err != nil {
		c.release(c.byChallenger, challenger.ID, id)
		return MatchView{}, err
	}

	now := c.now()
	m := newMatch(id, channelID, challenger, stake, now)
	m.ledger.Append(challenger.ID, stake, SidePrincipal, now)
	m.timer = NewTimer(func(gen uint64) { c.onTimer(id, gen) })

	// The timer is armed before the match becomes visible to Join and onTimer.
	c.mu.Lock()
	m.mu.Lock()
	m.timer.Arm(c.cfg.RecruitWindow)
	view := m.view()
	m.mu.Unlock()
	c.matches[id] = m
	c.mu.Unlock()

	go c.tick(m)

	log.Info().
		Str("match_id", id).
		Int64("channel_id", channelID).
		Int64("user_id", challenger.ID).
		Int64("amount", stake).
		Msg("RPS match created")

	c.notify(ctx, view)
	return view, nil
}

// Join escrows the opponent's stake and moves the match to Betting.
func (c *Coordinator) Join(ctx context.Context, matchID string, opponent Actor) (MatchView, error) {
	house := c.HouseEnabled() && opponent.ID == c.cfg.House.ID

	c.mu.Lock()
	m, ok := c.matches[matchID]
	if !ok {
		c.mu.Unlock()
		return MatchView{}, ErrUnknownMatch
	}
	if !house {
		if _, busy := c.byOpponent[opponent.ID]; busy {
			c.mu.Unlock()
			return MatchView{}, ErrDuplicateMatch
		}
		c.byOpponent[opponent.ID] = matchID
	}
	c.mu.Unlock()

	m.mu.Lock()
	err := m.join(ctx, c.wallet, opponent, c.cfg.BettingWindow, c.now())
	view := m.view()
	m.mu.Unlock()

	if err != nil {
		if !house {
			c.release(c.byOpponent, opponent.ID, matchID)
		}
		return MatchView{}, err
	}

	log.Debug().
		Str("match_id", matchID).
		Int64("user_id", opponent.ID).
		Str("phase", string(view.Phase)).
		Msg("RPS opponent joined")

	c.notify(ctx, view)
	return view, nil
}

// SideBet escrows a spectator's bet on one duellist.
func (c *Coordinator) SideBet(ctx context.Context, matchID string, bettor Actor, side Side, amount int64) (MatchView, error) {
	m, err := c.lookup(matchID)
	if err != nil {
		return MatchView{}, err
	}

	m.mu.Lock()
	err = m.sideBet(ctx, c.wallet, bettor, side, amount, c.now())
	view := m.view()
	m.mu.Unlock()

	if err != nil {
		return MatchView{}, err
	}

	log.Debug().
		Str("match_id", matchID).
		Int64("user_id", bettor.ID).
		Str("side", string(side)).
		Int64("amount", amount).
		Msg("RPS side bet placed")

	c.notify(ctx, view)
	return view, nil
}

// Submit records a duellist's throw. The match resolves once both throws are in.
func (c *Coordinator) Submit(ctx context.Context, matchID string, userID int64, choice Choice) (MatchView, error) {
	m, err := c.lookup(matchID)
	if err != nil {
		return MatchView{}, err
	}

	m.mu.Lock()
	complete, err := m.submit(userID, choice)
	if err != nil {
		m.mu.Unlock()
		return MatchView{}, err
	}
	if complete {
		m.resolve()
	}
	view := m.view()
	m.mu.Unlock()

	log.Debug().
		Str("match_id", matchID).
		Int64("user_id", userID).
		Msg("RPS throw submitted")

	if complete {
		view = c.finish(ctx, m, view)
	}
	c.notify(ctx, view)
	return view, nil
}

// Snapshot returns the current view of a live or recently settled match.
func (c *Coordinator) Snapshot(matchID string) (MatchView, error) {
	c.mu.Lock()
	m, ok := c.matches[matchID]
	if !ok {
		s, ok := c.settled[matchID]
		c.mu.Unlock()
		if !ok || c.now().After(s.expires) {
			return MatchView{}, ErrUnknownMatch
		}
		return s.view, nil
	}
	c.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view(), nil
}

// SuggestedBet returns the quick side-bet amount for a live match.
func (c *Coordinator) SuggestedBet(matchID string) (int64, error) {
	v, err := c.Snapshot(matchID)
	if err != nil {
		return 0, err
	}
	return v.SuggestedBet, nil
}

// ActiveMatches returns the number of live matches.
func (c *Coordinator) ActiveMatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.matches)
}

// CreateHouseMatch opens a match that the house joins immediately with a random throw.
// If the house loses a race for its own funds after the match was opened, the
// match stays open for human opponents and the join error is returned with the view.
func (c *Coordinator) CreateHouseMatch(ctx context.Context, channelID int64, challenger Actor, stake int64) (MatchView, error) {
	if !c.HouseEnabled() {
		return MatchView{}, ErrHouseDisabled
	}
	if challenger.ID == c.cfg.House.ID {
		return MatchView{}, ErrWrongActor
	}
	ok, err := c.wallet.HasAtLeast(ctx, c.cfg.House.ID, stake)
	if err != nil {
		return MatchView{}, fmt.Errorf("%w: %v", ErrTransientWallet, err)
	}
	if !ok {
		return MatchView{}, fmt.Errorf("%w: house cannot cover %d", ErrInsufficientFunds, stake)
	}

	view, err := c.CreateMatch(ctx, channelID, challenger, stake)
	if err != nil {
		return MatchView{}, err
	}

	joined, err := c.Join(ctx, view.ID, c.cfg.House)
	if err != nil {
		log.Warn().Err(err).Str("match_id", view.ID).Msg("House could not join RPS match")
		return view, fmt.Errorf("house join: %w", err)
	}

	thrown, err := c.Submit(ctx, view.ID, c.cfg.House.ID, c.randomChoice())
	if err != nil {
		return joined, fmt.Errorf("house throw: %w", err)
	}
	return thrown, nil
}

// Shutdown cancels every live match and refunds its ledger.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	live := make([]*Match, 0, len(c.matches))
	for _, m := range c.matches {
		live = append(live, m)
	}
	c.mu.Unlock()

	for _, m := range live {
		m.mu.Lock()
		if !m.live() {
			m.mu.Unlock()
			continue
		}
		m.timer.Cancel()
		m.phase = PhaseResolving
		m.outcome = OutcomeCancelled
		m.payouts = Refund(m.ledger.Entries())
		m.phase = PhaseTerminated
		view := m.view()
		m.mu.Unlock()

		view = c.finish(ctx, m, view)
		c.notify(ctx, view)
	}
}

func (c *Coordinator) randomChoice() Choice {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return Choices[c.rng.Intn(len(Choices))]
}

func (c *Coordinator) lookup(matchID string) (*Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.matches[matchID]
	if !ok {
		return nil, ErrUnknownMatch
	}
	return m, nil
}

// release drops an index entry if it still points at matchID.
func (c *Coordinator) release(index map[int64]string, userID int64, matchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index[userID] == matchID {
		delete(index, userID)
	}
}

// tick pushes the match's view every DisplayInterval while it is live so
// panels can count down. It never changes the match.
func (c *Coordinator) tick(m *Match) {
	ticker := time.NewTicker(c.cfg.DisplayInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if !m.live() {
			m.mu.Unlock()
			return
		}
		view := m.view()
		m.mu.Unlock()

		c.notify(ctx, view)
	}
}

func (c *Coordinator) onTimer(matchID string, gen uint64) {
	m, err := c.lookup(matchID)
	if err != nil {
		return
	}

	m.mu.Lock()
	prev := m.phase
	if !m.expire(gen) {
		m.mu.Unlock()
		return
	}
	view := m.view()
	m.mu.Unlock()

	log.Debug().
		Str("match_id", matchID).
		Str("phase", string(prev)).
		Str("outcome", string(view.Outcome)).
		Msg("RPS phase timer expired")

	ctx := context.Background()
	view = c.finish(ctx, m, view)
	c.notify(ctx, view)
}

// finish applies the settlement credits of a terminated match and retires it.
func (c *Coordinator) finish(ctx context.Context, m *Match, view MatchView) MatchView {
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	reason := m.creditReason()
	m.mu.Unlock()

	users := make([]int64, 0, len(view.Payouts))
	for userID := range view.Payouts {
		users = append(users, userID)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	for _, userID := range users {
		c.credit(ctx, view.ID, userID, view.Payouts[userID], reason)
	}

	close(m.done)

	c.mu.Lock()
	delete(c.matches, view.ID)
	if c.byChallenger[view.Challenger.ID] == view.ID {
		delete(c.byChallenger, view.Challenger.ID)
	}
	if view.Opponent.ID != 0 && c.byOpponent[view.Opponent.ID] == view.ID {
		delete(c.byOpponent, view.Opponent.ID)
	}
	now := c.now()
	c.settled[view.ID] = settledView{view: view, expires: now.Add(c.cfg.SettledRetention)}
	for id, s := range c.settled {
		if now.After(s.expires) {
			delete(c.settled, id)
		}
	}
	c.mu.Unlock()

	log.Info().
		Str("match_id", view.ID).
		Int64("channel_id", view.ChannelID).
		Str("outcome", string(view.Outcome)).
		Int64("amount", view.Pot).
		Msg("RPS match settled")

	return view
}

// credit pays one settlement amount with bounded exponential backoff.
// On exhaustion the credit is handed to the reconciler.
func (c *Coordinator) credit(ctx context.Context, matchID string, userID, amount int64, reason string) {
	if amount <= 0 {
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.CreditInitialBackoff
	b.MaxInterval = c.cfg.CreditMaxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.CreditAttempts-1)), ctx)

	op := func() error {
		err := c.wallet.Credit(ctx, userID, amount, reason)
		if err != nil && errors.Is(err, ErrInvalidAmount) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("match_id", matchID).
			Int64("user_id", userID).
			Int64("amount", amount).
			Dur("retry_in", wait).
			Msg("RPS credit failed, retrying")
	}

	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		return
	}

	log.Error().
		Err(err).
		Str("match_id", matchID).
		Int64("user_id", userID).
		Int64("amount", amount).
		Msg("RPS credit exhausted retries")

	if c.reconciler == nil {
		return
	}
	unpaid := model.UnpaidCredit{
		MatchID:   matchID,
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		LastError: err.Error(),
	}
	if rerr := c.reconciler.RecordUnpaid(ctx, unpaid); rerr != nil {
		log.Error().
			Err(rerr).
			Str("match_id", matchID).
			Int64("user_id", userID).
			Int64("amount", amount).
			Msg("Failed to record unpaid RPS credit")
	}
}

func (c *Coordinator) notify(ctx context.Context, view MatchView) {
	c.mu.Lock()
	n := c.notifier
	c.mu.Unlock()
	if n != nil {
		n.MatchUpdated(context.WithoutCancel(ctx), view)
	}
}
