package handler

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rps-wager-bot/internal/game/rps"
)

// messageEditor is the part of *tele.Bot the notifier needs.
type messageEditor interface {
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type panel struct {
	mu      sync.Mutex
	msg     tele.StoredMessage
	version uint64
	closed  bool
}

// PanelNotifier keeps each match's panel message in sync with the engine.
type PanelNotifier struct {
	editor messageEditor

	mu     sync.Mutex
	panels map[string]*panel
}

// NewPanelNotifier creates a new PanelNotifier.
func NewPanelNotifier(editor messageEditor) *PanelNotifier {
	return &PanelNotifier{
		editor: editor,
		panels: make(map[string]*panel),
	}
}

var _ rps.Notifier = (*PanelNotifier)(nil)

// Track registers the message that displays a match.
func (n *PanelNotifier) Track(matchID string, msg *tele.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.panels[matchID] = &panel{
		msg: tele.StoredMessage{MessageID: strconv.Itoa(msg.ID), ChatID: msg.Chat.ID},
	}
}

// Tracked returns the number of panels still being updated.
func (n *PanelNotifier) Tracked() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.panels)
}

// MatchUpdated edits the match's panel. Views older than the one already
// shown are skipped. Once a terminated view is shown the panel is dropped and
// late updates for it are ignored.
func (n *PanelNotifier) MatchUpdated(_ context.Context, v rps.MatchView) {
	n.mu.Lock()
	p := n.panels[v.ID]
	if v.Terminated() {
		delete(n.panels, v.ID)
	}
	n.mu.Unlock()

	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || v.Version < p.version {
		return
	}
	p.version = v.Version
	if v.Terminated() {
		p.closed = true
	}

	_, err := n.editor.Edit(&p.msg, FormatRPSPanel(v), panelOptions(v)...)
	if err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		log.Warn().
			Err(err).
			Str("match_id", v.ID).
			Int64("chat_id", p.msg.ChatID).
			Msg("Failed to update RPS panel")
	}
}

// panelOptions returns the send options for a view. A terminated match is
// sent without markup, which removes the keyboard.
func panelOptions(v rps.MatchView) []interface{} {
	markup := BuildRPSPanel(v)
	if markup == nil {
		return nil
	}
	return []interface{}{markup}
}
