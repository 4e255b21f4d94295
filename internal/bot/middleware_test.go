package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"rps-wager-bot/internal/config"
)

// fakeContext implements the parts of tele.Context the middleware touches.
type fakeContext struct {
	tele.Context
	chat     *tele.Chat
	sender   *tele.User
	callback *tele.Callback
	replies  []string
	alerts   []string
}

func (c *fakeContext) Chat() *tele.Chat         { return c.chat }
func (c *fakeContext) Sender() *tele.User       { return c.sender }
func (c *fakeContext) Callback() *tele.Callback { return c.callback }
func (c *fakeContext) Text() string             { return "/rps 10" }

func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what.(string))
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	for _, r := range resp {
		c.alerts = append(c.alerts, r.Text)
	}
	return nil
}

func groupCtx(chatID, userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatSuperGroup},
		sender: &tele.User{ID: userID},
	}
}

func privateCtx(userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		sender: &tele.User{ID: userID},
	}
}

func run(mw tele.MiddlewareFunc, c tele.Context) bool {
	called := false
	_ = mw(func(tele.Context) error {
		called = true
		return nil
	})(c)
	return called
}

func TestWhitelistMiddleware(t *testing.T) {
	cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{-100}}}
	mw := WhitelistMiddleware(cfg)

	assert.False(t, run(mw, groupCtx(-200, 1)), "non-whitelisted group")
	assert.False(t, run(mw, privateCtx(1)), "unknown private user")

	assert.True(t, run(mw, groupCtx(-100, 1)))
	assert.True(t, run(mw, privateCtx(1)), "user seen in a whitelisted group")
	assert.False(t, run(mw, privateCtx(2)))

	assert.False(t, run(mw, &fakeContext{}), "updates without chat are dropped")
}

func TestWhitelistMiddleware_EmptyWhitelistAllowsAll(t *testing.T) {
	mw := WhitelistMiddleware(&config.Config{})
	assert.True(t, run(mw, groupCtx(-5, 1)))
	assert.True(t, run(mw, privateCtx(9)))
}

func TestAdminMiddlewareProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := rapid.SliceOfN(rapid.Int64Range(1, 1000000000), 1, 10).Draw(t, "adminIDs")
		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: adminIDs}}

		expected := false
		for _, id := range adminIDs {
			if id == userID {
				expected = true
			}
		}

		c := groupCtx(-1, userID)
		called := run(AdminMiddleware(cfg), c)
		if called != expected {
			t.Fatalf("admin check mismatch: userID=%d, adminIDs=%v, expected=%v, got=%v",
				userID, adminIDs, expected, called)
		}
		if !called && len(c.replies) != 1 {
			t.Fatalf("rejected user should get one reply, got %v", c.replies)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panics := func(tele.Context) error { panic("boom") }

	c := groupCtx(-1, 1)
	assert.NotPanics(t, func() { _ = RecoveryMiddleware()(panics)(c) })
	assert.Len(t, c.replies, 1)

	cb := groupCtx(-1, 1)
	cb.callback = &tele.Callback{Data: "rps_join_x"}
	assert.NotPanics(t, func() { _ = RecoveryMiddleware()(panics)(cb) })
	assert.Empty(t, cb.replies)
	assert.Len(t, cb.alerts, 1)
}
