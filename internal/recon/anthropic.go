package recon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1/messages"
	defaultModel   = "claude-sonnet-4-20250514"

	anthropicVersion = "2023-06-01"
	maxRetries       = 3
	initialDelay     = time.Second
)

const systemPrompt = `You reconcile two descriptions of the same payment card: one reported by a
card-network account updater, one currently stored by the merchant. Diff the
fields, prefer the fresher value for each, and respond with ONLY a JSON object
of this exact shape:
{"card_type": string, "last_four": string, "expiry_month": "MM",
 "expiry_year": "YYYY", "status": string, "is_default": boolean or null,
 "field_notes": {field: reason}, "confidence": number between 0 and 1}`

// AnthropicClient calls the Anthropic Messages API to merge conflicting card
// records. All failures surface as *ReconciliationError.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewAnthropicClient creates a reconciliation client. Empty baseURL and model
// select the production endpoint and default model; timeout bounds each call.
func NewAnthropicClient(apiKey, baseURL, model string, timeout time.Duration) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Reconcile asks the model to merge the provider-reported snapshot with the
// stored one and parses the fixed-schema JSON reply.
func (c *AnthropicClient) Reconcile(ctx context.Context, provider, stored Snapshot) (*Resolution, error) {
	if c.apiKey == "" {
		return nil, &ReconciliationError{Reason: "api key not configured"}
	}

	providerJSON, err := json.Marshal(provider)
	if err != nil {
		return nil, &ReconciliationError{Reason: "marshal provider snapshot", Err: err}
	}
	storedJSON, err := json.Marshal(stored)
	if err != nil {
		return nil, &ReconciliationError{Reason: "marshal stored snapshot", Err: err}
	}

	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: fmt.Sprintf("Provider-reported card record:\n%s\n\nStored card record:\n%s",
				providerJSON, storedJSON),
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ReconciliationError{Reason: "marshal request", Err: err}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &ReconciliationError{Reason: "cancelled", Err: ctx.Err()}
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, &ReconciliationError{Reason: "create request", Err: err}
		}
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("api error (%d): %s", resp.StatusCode, respBody)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return nil, &ReconciliationError{Reason: "api rejected request", Err: lastErr}
		}

		var apiResp anthropicResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, &ReconciliationError{Reason: "decode response", Err: err}
		}
		if len(apiResp.Content) == 0 {
			return nil, &ReconciliationError{Reason: "empty response content"}
		}

		return ParseResolution(apiResp.Content[0].Text)
	}

	return nil, &ReconciliationError{Reason: fmt.Sprintf("max retries (%d) exceeded", maxRetries), Err: lastErr}
}

// ParseResolution extracts the resolution JSON from model output. The model
// sometimes wraps the object in prose or code fences, so parsing slices from
// the first '{' to the last '}' and attempts a strict decode of that span.
func ParseResolution(text string) (*Resolution, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, &ReconciliationError{Reason: "no JSON object in response", Raw: text}
	}

	var res Resolution
	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		return nil, &ReconciliationError{Reason: "parse resolution JSON", Raw: text, Err: err}
	}

	if res.ExpiryMonth == "" || res.ExpiryYear == "" {
		return nil, &ReconciliationError{Reason: "resolution missing expiry", Raw: text}
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		return nil, &ReconciliationError{Reason: fmt.Sprintf("confidence %v out of range", res.Confidence), Raw: text}
	}

	return &res, nil
}
