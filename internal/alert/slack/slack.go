// Package slack posts operational alerts to a Slack channel.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts alerts via the Slack Web API.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel ID is required")
	}

	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.Token)
	}
	return &Notifier{client: client, channelID: opts.ChannelID}, nil
}

// Notify posts the alert as a single message with the subject bolded.
func (n *Notifier) Notify(ctx context.Context, subject, body string) error {
	text := fmt.Sprintf("*%s*\n%s", subject, body)
	_, _, err := n.client.PostMessageContext(ctx, n.channelID,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack: post alert: %w", err)
	}
	return nil
}
