package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FCMClient implements Provider against the FCM legacy HTTP API: one POST per
// call, multiple tokens via registration_ids, per-token results in order.
type FCMClient struct {
	endpoint  string
	serverKey string
	httpc     *http.Client
}

// NewFCMClient builds a client for the given endpoint and server key.
func NewFCMClient(endpoint, serverKey string, timeout time.Duration) *FCMClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FCMClient{
		endpoint:  endpoint,
		serverKey: serverKey,
		httpc:     &http.Client{Timeout: timeout},
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmRequest struct {
	To              string            `json:"to,omitempty"`
	RegistrationIDs []string          `json:"registration_ids,omitempty"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmResult struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

type fcmResponse struct {
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	Results []fcmResult `json:"results"`
}

// Send delivers the payload to the given tokens in a single provider call.
func (c *FCMClient) Send(ctx context.Context, tokens []string, payload Payload) ([]TokenResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	req := fcmRequest{
		Notification: fcmNotification{Title: payload.Title, Body: payload.Body},
		Data:         payload.Data,
	}
	if len(tokens) == 1 {
		req.To = tokens[0]
	} else {
		req.RegistrationIDs = tokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var parsed fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Results come back in token order; a short result list means the
	// provider silently dropped trailing tokens, reported as failures.
	out := make([]TokenResult, len(tokens))
	for i, token := range tokens {
		out[i] = TokenResult{Token: token}
		if i < len(parsed.Results) {
			out[i].Error = parsed.Results[i].Error
		} else {
			out[i].Error = "MissingResult"
		}
	}
	return out, nil
}
