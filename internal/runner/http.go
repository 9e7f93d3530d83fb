package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenHeader carries the internal-service credential on runner calls.
const TokenHeader = "X-Switchyard-Token"

const defaultTimeout = 10 * time.Second

// HTTPRunner hands chats off to the execution runner over HTTP.
type HTTPRunner struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewHTTP creates an HTTPRunner posting to baseURL with the shared secret.
func NewHTTP(baseURL, secret string) *HTTPRunner {
	return &HTTPRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Start posts the start request to the runner. A non-2xx response is a
// handoff rejection.
func (r *HTTPRunner) Start(ctx context.Context, req StartRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("runner: marshal start request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/runs", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("runner: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(TokenHeader, r.secret)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("runner: post %s: %w", httpReq.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("runner: start %s rejected: %d %s", req.ThreadChatID, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
