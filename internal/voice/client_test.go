package voice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/fundraise-dialer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(server *httptest.Server) *Client {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	return &Client{
		baseURL:       server.URL,
		apiKey:        "test-api-key",
		workspaceID:   "ws-1",
		outboundPath:  "/v1/convai/twilio/outbound-call",
		historyPath:   "/v1/convai/conversations/{id}/messages",
		callClient:    httpClient,
		historyClient: httpClient,
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(config.VoiceConfig{
		APIKey:           "key",
		BaseURL:          "https://voice.example.com/",
		OutboundCallPath: "/call",
		HistoryPath:      "/h/{id}",
		TimeoutSeconds:   10,
	})

	assert.Equal(t, "https://voice.example.com", client.baseURL)
	assert.Equal(t, "key", client.apiKey)
	assert.NotNil(t, client.callClient)
	assert.NotNil(t, client.historyClient)
}

func TestPlaceOutboundCall(t *testing.T) {
	var got OutboundCallRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/convai/twilio/outbound-call", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "ws-1", r.Header.Get("X-Workspace-Id"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversation_id":"conv_123","callSid":"CA999"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	res, err := client.PlaceOutboundCall(context.Background(), OutboundCallRequest{
		AgentID:            "agent_ext",
		AgentPhoneNumberID: "phnum_1",
		ToNumber:           "+14155550123",
		ClientData: ClientData{DynamicVariables: DynamicVariables{
			DonorName: "Ada", CampaignID: "camp-1", AttemptNo: 2,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "conv_123", res.ConversationID)
	assert.Equal(t, "CA999", res.CallSID)

	assert.Equal(t, "agent_ext", got.AgentID)
	assert.Equal(t, "phnum_1", got.AgentPhoneNumberID)
	assert.Equal(t, "+14155550123", got.ToNumber)
	assert.Equal(t, 2, got.ClientData.DynamicVariables.AttemptNo)
	assert.Equal(t, "Ada", got.ClientData.DynamicVariables.DonorName)
}

func TestPlaceOutboundCallSnakeCaseSID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"conversation_id":"conv_1","call_sid":"CA1"}`))
	}))
	defer server.Close()

	res, err := newTestClient(server).PlaceOutboundCall(context.Background(), OutboundCallRequest{})
	require.NoError(t, err)
	assert.Equal(t, "CA1", res.CallSID)
}

func TestPlaceOutboundCallNon2xxIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"busy"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).PlaceOutboundCall(context.Background(), OutboundCallRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "busy")
	assert.Equal(t, 1, calls)
}

func TestGetConversationHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/convai/conversations/conv_123/messages", r.URL.Path)
		w.Write([]byte(`{
			"conversation_id": "conv_123",
			"messages": [
				{"role": "agent", "content": "Hello", "timestamp": "2026-03-01T15:00:00Z"},
				{"role": "user", "content": "Hi", "timestamp": 1772377230}
			]
		}`))
	}))
	defer server.Close()

	h, err := newTestClient(server).GetConversationHistory(context.Background(), "conv_123")
	require.NoError(t, err)
	assert.False(t, h.DemoMode)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "agent", h.Messages[0].Role)
	assert.Equal(t, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), h.Messages[0].Timestamp.Time)
	assert.True(t, h.Messages[1].IsUser())
	assert.Equal(t, time.Unix(1772377230, 0).UTC(), h.Messages[1].Timestamp.Time)
}

func TestGetConversationHistoryFallsBackToCanned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h, err := newTestClient(server).GetConversationHistory(context.Background(), "conv_404")
	require.NoError(t, err)
	assert.True(t, h.DemoMode)
	assert.Equal(t, "conv_404", h.ConversationID)
	assert.NotEmpty(t, h.Messages)
}

func TestGetConversationHistoryRequiresID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	_, err := newTestClient(server).GetConversationHistory(context.Background(), "")
	assert.Error(t, err)
}

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2026-01-02T03:04:05Z"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"seconds", `1767323045`, time.Unix(1767323045, 0).UTC()},
		{"milliseconds", `1767323045000`, time.UnixMilli(1767323045000).UTC()},
		{"null", `null`, time.Time{}},
		{"empty string", `""`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v want %v", ts.Time, tt.want)
		})
	}

	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
