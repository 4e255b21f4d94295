package discord

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rps-wager-bot/internal/game/rps"
)

const testMatchID = "0f8fad5b-d9cb-469f-a165-70867728950e"

func TestCustomID(t *testing.T) {
	id := EncodeCustomID(actionJoin, testMatchID)
	assert.Equal(t, "rps:join:"+testMatchID, id)

	action, matchID, ok := DecodeCustomID(id)
	require.True(t, ok)
	assert.Equal(t, actionJoin, action)
	assert.Equal(t, testMatchID, matchID)

	for _, bad := range []string{"", "craps_roll", "rps:", "rps:join", "rps::x", "rps:join:"} {
		_, _, ok := DecodeCustomID(bad)
		assert.False(t, ok, bad)
	}
}

func customIDs(rows []discordgo.MessageComponent) []string {
	var out []string
	for _, r := range rows {
		for _, c := range r.(discordgo.ActionsRow).Components {
			out = append(out, c.(discordgo.Button).CustomID)
		}
	}
	return out
}

func view(phase rps.Phase) rps.MatchView {
	v := rps.MatchView{
		ID:           testMatchID,
		Phase:        phase,
		Challenger:   rps.Actor{ID: 1, Name: "alice"},
		BaseStake:    100,
		Pot:          100,
		SideTotals:   map[rps.Side]int64{},
		SuggestedBet: 50,
		Remaining:    12,
	}
	if phase != rps.PhaseRecruit {
		v.Opponent = rps.Actor{ID: 2, Name: "bob"}
		v.Pot = 200
		v.SuggestedBet = 100
		v.Thrown = map[int64]bool{2: true}
	}
	return v
}

func TestBuildComponents(t *testing.T) {
	assert.Equal(t, []string{
		"rps:join:" + testMatchID,
		"rps:betch:" + testMatchID,
		"rps:betop:" + testMatchID,
	}, customIDs(BuildComponents(view(rps.PhaseRecruit))))

	assert.Equal(t, []string{
		"rps:rock:" + testMatchID,
		"rps:paper:" + testMatchID,
		"rps:scissors:" + testMatchID,
		"rps:betch:" + testMatchID,
		"rps:betop:" + testMatchID,
	}, customIDs(BuildComponents(view(rps.PhaseBetting))))

	assert.Empty(t, BuildComponents(view(rps.PhaseTerminated)))
}

func TestBuildEmbed(t *testing.T) {
	e := BuildEmbed(view(rps.PhaseBetting))
	assert.Equal(t, "**alice** vs **bob** for 100", e.Description)
	assert.Equal(t, "Throw! 12 s left", e.Footer.Text)
	assert.Equal(t, "200", e.Fields[0].Value)
	assert.Equal(t, "Throws", e.Fields[len(e.Fields)-1].Name)
	assert.Equal(t, "⌛ alice\n✅ bob", e.Fields[len(e.Fields)-1].Value)

	settled := view(rps.PhaseTerminated)
	settled.Outcome = rps.OutcomeOpponent
	settled.ChallengerChoice = rps.Scissors
	settled.OpponentChoice = rps.Rock
	settled.Payouts = map[int64]int64{2: 200, 1: 0}
	e = BuildEmbed(settled)
	assert.Nil(t, e.Footer)
	assert.Equal(t, colorSettled, e.Color)
	result := e.Fields[len(e.Fields)-1]
	assert.Equal(t, "Result", result.Name)
	assert.Contains(t, result.Value, "🏆 **bob** wins")
	assert.Contains(t, result.Value, "bob +200")
	assert.NotContains(t, result.Value, "alice +")

	cancelled := view(rps.PhaseRecruit)
	cancelled.Phase = rps.PhaseTerminated
	cancelled.Outcome = rps.OutcomeCancelled
	assert.Equal(t, colorVoid, BuildEmbed(cancelled).Color)
}

func TestInteractionActor(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "123456789012345678", Username: "al", GlobalName: "Alice"}},
	}}
	a, err := interactionActor(guild)
	require.NoError(t, err)
	assert.Equal(t, rps.Actor{ID: 123456789012345678, Name: "Alice"}, a)

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "42", Username: "bob"},
	}}
	a, err = interactionActor(dm)
	require.NoError(t, err)
	assert.Equal(t, rps.Actor{ID: 42, Name: "bob"}, a)

	_, err = interactionActor(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}})
	assert.Error(t, err)

	_, err = interactionActor(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "not-a-snowflake"},
	}})
	assert.Error(t, err)
}

func TestRPSOptions(t *testing.T) {
	stake, house := rpsOptions(discordgo.ApplicationCommandInteractionData{
		Name: "rps",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "stake", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(75)},
			{Name: "house", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
		},
	})
	assert.Equal(t, int64(75), stake)
	assert.True(t, house)
}

type fakeEditor struct {
	mu    sync.Mutex
	edits []*discordgo.MessageEdit
}

func (f *fakeEditor) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func TestPanelNotifier(t *testing.T) {
	ed := &fakeEditor{}
	n := NewPanelNotifier(ed)
	ctx := context.Background()

	n.MatchUpdated(ctx, view(rps.PhaseRecruit))
	assert.Empty(t, ed.edits)

	n.Track(testMatchID, &discordgo.Message{ID: "m1", ChannelID: "c1"})
	n.MatchUpdated(ctx, view(rps.PhaseBetting))

	settled := view(rps.PhaseTerminated)
	settled.Outcome = rps.OutcomeDraw
	n.MatchUpdated(ctx, settled)
	n.MatchUpdated(ctx, view(rps.PhaseBetting))

	require.Len(t, ed.edits, 2)
	assert.Equal(t, "m1", ed.edits[0].ID)
	assert.Equal(t, "c1", ed.edits[0].Channel)
	assert.NotEmpty(t, *ed.edits[0].Components)
	assert.Empty(t, *ed.edits[1].Components)
	assert.Equal(t, 0, n.Tracked())
}

func TestPanelNotifier_SkipsOlderViews(t *testing.T) {
	ed := &fakeEditor{}
	n := NewPanelNotifier(ed)
	ctx := context.Background()
	n.Track(testMatchID, &discordgo.Message{ID: "m1", ChannelID: "c1"})

	newer := view(rps.PhaseBetting)
	newer.Version = 9
	newer.Pot = 260
	older := view(rps.PhaseBetting)
	older.Version = 8
	older.Pot = 230

	n.MatchUpdated(ctx, newer)
	n.MatchUpdated(ctx, older)

	require.Len(t, ed.edits, 1)
	assert.Equal(t, "260", (*ed.edits[0].Embeds)[0].Fields[0].Value)
}

// memWallet is an in-memory rps.Wallet.
type memWallet struct {
	mu       sync.Mutex
	balances map[int64]int64
}

func (w *memWallet) HasAtLeast(_ context.Context, userID, amount int64) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID] >= amount, nil
}

func (w *memWallet) Debit(_ context.Context, userID, amount int64, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[userID] < amount {
		return rps.ErrInsufficientFunds
	}
	w.balances[userID] -= amount
	return nil
}

func (w *memWallet) Credit(_ context.Context, userID, amount int64, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] += amount
	return nil
}

func (w *memWallet) Balance(userID int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID]
}

func TestApply_FullMatch(t *testing.T) {
	wallet := &memWallet{balances: map[int64]int64{1: 1000, 2: 1000, 3: 1000}}
	coord := rps.NewCoordinator(&rps.Config{}, wallet, nil)
	b := &Bot{coordinator: coord}
	ctx := context.Background()

	alice := rps.Actor{ID: 1, Name: "alice"}
	bob := rps.Actor{ID: 2, Name: "bob"}
	carol := rps.Actor{ID: 3, Name: "carol"}

	v, err := coord.CreateMatch(ctx, 10, alice, 100)
	require.NoError(t, err)

	_, err = b.apply(ctx, actionJoin, v.ID, alice)
	assert.True(t, errors.Is(err, rps.ErrWrongActor))

	text, err := b.apply(ctx, actionJoin, v.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, "⚔️ You joined the match", text)

	text, err = b.apply(ctx, actionBetCh, v.ID, carol)
	require.NoError(t, err)
	assert.Equal(t, "💰 You bet 100", text)

	_, err = b.apply(ctx, "lizard", v.ID, alice)
	assert.ErrorIs(t, err, rps.ErrInvalidChoice)

	_, err = b.apply(ctx, "rock", v.ID, carol)
	assert.ErrorIs(t, err, rps.ErrWrongActor)

	_, err = b.apply(ctx, "rock", v.ID, alice)
	require.NoError(t, err)
	_, err = b.apply(ctx, "scissors", v.ID, bob)
	require.NoError(t, err)

	final, err := coord.Snapshot(v.ID)
	require.NoError(t, err)
	assert.Equal(t, rps.OutcomeChallenger, final.Outcome)
	assert.Equal(t, int64(1000+100), wallet.Balance(1))
	assert.Equal(t, int64(1000-100), wallet.Balance(2))
	assert.Equal(t, int64(1000), wallet.Balance(3))
	assert.Equal(t, int64(3000), wallet.Balance(1)+wallet.Balance(2)+wallet.Balance(3))
}
