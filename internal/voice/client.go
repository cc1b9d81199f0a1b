// Package voice is the client for the voice provider's outbound-call and
// conversation-history APIs.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/fundraise-dialer/internal/config"
	"github.com/ignite/fundraise-dialer/internal/pkg/httpretry"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
)

// maxErrorBody caps how much of a failed response is kept for logging.
const maxErrorBody = 2048

// Client is a voice provider API client. Outbound calls go through a plain
// client so a failed dial is never repeated; history reads are retried.
type Client struct {
	baseURL       string
	apiKey        string
	workspaceID   string
	outboundPath  string
	historyPath   string
	callClient    httpretry.HTTPDoer
	historyClient httpretry.HTTPDoer
}

// NewClient creates a new voice provider API client
func NewClient(cfg config.VoiceConfig) *Client {
	base := &http.Client{Timeout: cfg.Timeout()}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		workspaceID:   cfg.WorkspaceID,
		outboundPath:  cfg.OutboundCallPath,
		historyPath:   cfg.HistoryPath,
		callClient:    base,
		historyClient: httpretry.NewRetryClient(base, cfg.HistoryRetries),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.workspaceID != "" {
		req.Header.Set("X-Workspace-Id", c.workspaceID)
	}
	return req, nil
}

// PlaceOutboundCall asks the provider to dial one number. Any non-2xx
// response is returned as *APIError and is not retried here; the lead stays
// eligible and is picked up again on a later tick.
func (c *Client) PlaceOutboundCall(ctx context.Context, in OutboundCallRequest) (*OutboundCallResult, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshaling outbound call: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.outboundPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := c.callClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var out outboundCallResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decoding outbound call response: %w", err)
		}
	}

	sid := out.CallSID
	if sid == "" {
		sid = out.CallSIDSnake
	}
	return &OutboundCallResult{ConversationID: out.ConversationID, CallSID: sid}, nil
}

// GetConversationHistory returns the full message history of a conversation.
// Provider failures degrade to CannedHistory rather than an error.
func (c *Client) GetConversationHistory(ctx context.Context, conversationID string) (*History, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	path := strings.ReplaceAll(c.historyPath, "{id}", url.PathEscape(conversationID))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	history, err := c.fetchHistory(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("voice history fetch failed, serving canned history",
			"conversation_id", conversationID, "error", err)
		return CannedHistory(conversationID), nil
	}
	if history.ConversationID == "" {
		history.ConversationID = conversationID
	}
	return history, nil
}

func (c *Client) fetchHistory(req *http.Request) (*History, error) {
	resp, err := c.historyClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var h History
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return &h, nil
}

// CannedHistory is the degraded-mode history served when the provider
// cannot be reached.
func CannedHistory(conversationID string) *History {
	return &History{
		ConversationID: conversationID,
		DemoMode:       true,
		Messages: []Message{
			{Role: "agent", Content: "Hello, thank you for taking our call today."},
			{Role: "user", Content: "Hi, who is this?"},
		},
	}
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
