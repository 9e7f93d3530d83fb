// Package alert delivers operational alerts (failed handoffs, stuck
// releases) to a chat channel. Delivery is best-effort: callers log alert
// errors and move on.
package alert

import (
	"context"
	"fmt"

	"github.com/zulandar/switchyard/internal/alert/discord"
	"github.com/zulandar/switchyard/internal/alert/slack"
	"github.com/zulandar/switchyard/internal/config"
)

// Notifier sends one operational alert.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Noop discards alerts. Used when no platform is configured.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, string, string) error { return nil }

// FromConfig builds the configured Notifier.
func FromConfig(cfg config.AlertsConfig) (Notifier, error) {
	switch cfg.Platform {
	case "", "none":
		return Noop{}, nil
	case "slack":
		return slack.New(slack.Opts{Token: cfg.SlackToken, ChannelID: cfg.SlackChannel})
	case "discord":
		return discord.New(discord.Opts{Token: cfg.DiscordToken, ChannelID: cfg.DiscordChannel})
	default:
		return nil, fmt.Errorf("alert: unknown platform %q", cfg.Platform)
	}
}
