package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"rps-wager-bot/internal/game/rps"
)

// messageEditor is the part of *discordgo.Session the notifier needs.
type messageEditor interface {
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type panel struct {
	mu        sync.Mutex
	channelID string
	messageID string
	version   uint64
	closed    bool
}

// PanelNotifier edits each match's interaction message as the match changes.
type PanelNotifier struct {
	editor messageEditor

	mu     sync.Mutex
	panels map[string]*panel
}

// NewPanelNotifier creates a new PanelNotifier.
func NewPanelNotifier(editor messageEditor) *PanelNotifier {
	return &PanelNotifier{editor: editor, panels: make(map[string]*panel)}
}

var _ rps.Notifier = (*PanelNotifier)(nil)

// Track registers the message that displays a match.
func (n *PanelNotifier) Track(matchID string, msg *discordgo.Message) {
	if msg == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.panels[matchID] = &panel{channelID: msg.ChannelID, messageID: msg.ID}
}

// Tracked returns the number of panels still being updated.
func (n *PanelNotifier) Tracked() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.panels)
}

// MatchUpdated edits the match's message. Out-of-order views and late updates
// after settlement are dropped.
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
	p.closed = v.Terminated()

	embeds := []*discordgo.MessageEmbed{BuildEmbed(v)}
	components := BuildComponents(v)
	edit := &discordgo.MessageEdit{
		ID:         p.messageID,
		Channel:    p.channelID,
		Embeds:     &embeds,
		Components: &components,
	}
	if _, err := n.editor.ChannelMessageEditComplex(edit); err != nil {
		log.Warn().
			Err(err).
			Str("match_id", v.ID).
			Str("channel_id", p.channelID).
			Msg("Failed to update RPS panel")
	}
}
