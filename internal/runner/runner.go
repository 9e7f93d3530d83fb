// Package runner defines the handoff contract to the execution runner, the
// external subsystem that performs the actual agent work for a thread chat.
package runner

import "context"

// StartRequest identifies the chat being handed off and what triggered it.
type StartRequest struct {
	UserID       string `json:"user_id"`
	ThreadID     string `json:"thread_id"`
	ThreadChatID string `json:"thread_chat_id"`
	Trigger      string `json:"trigger"`
}

// Runner accepts a fire-and-forget handoff. Once Start returns nil the runner
// owns the chat's lifecycle, including the transition out of running.
type Runner interface {
	Start(ctx context.Context, req StartRequest) error
}
