package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// invokePaths are tried in order until one returns a 2xx response. /chat is
// the canonical endpoint; the rest cover older agent builds.
var invokePaths = []string{"/chat", "/invoke", "/message", "/"}

// Client invokes downstream agents over HTTP.
type Client struct {
	registry *Registry
	http     *http.Client
}

// NewClient builds an agent client with the given per-request timeout.
func NewClient(registry *Registry, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		registry: registry,
		http:     &http.Client{Timeout: timeout},
	}
}

// Invoke sends a message to the named agent and returns its parsed payload.
// An empty conversationID generates one from the current time; it is
// advisory correlation data only. Failures never surface as Go errors to
// callers of the routing layer; they collapse into an AgentResult carrying
// the error string.
func (c *Client) Invoke(ctx context.Context, agentName, message, conversationID string) types.AgentResult {
	baseURL, err := c.registry.BaseURL(agentName)
	if err != nil {
		return types.AgentResult{Err: err.Error()}
	}

	if conversationID == "" {
		conversationID = fmt.Sprintf("conv_%d", time.Now().Unix())
	}
	body, err := json.Marshal(map[string]string{
		"message":         message,
		"conversation_id": conversationID,
	})
	if err != nil {
		return types.AgentResult{Err: fmt.Sprintf("encode request: %v", err)}
	}

	var lastErr string
	for _, path := range invokePaths {
		payload, errStr := c.post(ctx, baseURL+path, body)
		if errStr == "" {
			return types.AgentResult{Payload: payload}
		}
		lastErr = errStr
		logger.Logger.Debug().
			Str("agent", agentName).
			Str("path", path).
			Str("error", errStr).
			Msg("Agent endpoint failed, trying next")
	}
	logger.Logger.Warn().
		Str("agent", agentName).
		Str("error", lastErr).
		Msg("All agent endpoints failed")
	return types.AgentResult{Err: lastErr}
}

func (c *Client) post(ctx context.Context, url string, body []byte) (map[string]interface{}, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err.Error()
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Sprintf("read response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Agents occasionally answer with bare text; wrap it so callers
		// always see a map.
		return map[string]interface{}{"response": string(raw)}, ""
	}
	return payload, ""
}

// Card fetches an agent's discovery document. A failed fetch is reported in
// the card's Error field rather than as a Go error, so fleet listings can
// include unreachable agents.
func (c *Client) Card(ctx context.Context, agentName string) types.AgentCard {
	baseURL, err := c.registry.BaseURL(agentName)
	if err != nil {
		return types.AgentCard{Name: agentName, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/.well-known/agent-card.json", nil)
	if err != nil {
		return types.AgentCard{Name: agentName, Error: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return types.AgentCard{Name: agentName, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.AgentCard{Name: agentName, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	var card types.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return types.AgentCard{Name: agentName, Error: fmt.Sprintf("decode card: %v", err)}
	}
	if card.Name == "" {
		card.Name = agentName
	}
	return card
}
