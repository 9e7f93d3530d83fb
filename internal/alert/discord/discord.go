// Package discord posts operational alerts to a Discord channel.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// sender abstracts the discordgo method we use, enabling test mocks.
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts alerts via the Discord REST API. No gateway connection is
// opened; message sends go straight over HTTP.
type Notifier struct {
	session   sender
	channelID string
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock session instead of the real API.
	Session sender
}

// New creates a Discord Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel ID is required")
	}

	session := opts.Session
	if session == nil {
		s, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		session = s
	}
	return &Notifier{session: session, channelID: opts.ChannelID}, nil
}

// Notify posts the alert as a single message with the subject bolded.
func (n *Notifier) Notify(_ context.Context, subject, body string) error {
	content := fmt.Sprintf("**%s**\n%s", subject, body)
	if _, err := n.session.ChannelMessageSend(n.channelID, content); err != nil {
		return fmt.Errorf("discord: post alert: %w", err)
	}
	return nil
}
