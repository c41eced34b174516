// Package llm is the single process-wide client for chat completion, text
// embedding, and health checks against a locally hosted model gateway
// (component C11). Endpoint discovery/fallback and tolerant response
// parsing are grounded in the teacher's Compass client, which solved the
// same "multiple candidate base URLs, multiple response shapes" problem
// against the M3/Infor API surface.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/ratelimit"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthConfig configures the optional client-credentials auth mode for an
// enterprise model gateway sitting behind an OAuth-secured proxy, instead
// of LMSTUDIO's normal bare bearer token. A zero value (empty TokenURL)
// means "not configured".
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (o OAuthConfig) enabled() bool { return o.TokenURL != "" }

// Client talks to a chat/embedding gateway reachable at BaseURL, trying
// versioned and unversioned endpoint candidates in order until one
// succeeds.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	baseURL    string
	chatModel  string
	embedModel string
}

// New builds a Client. baseURL is the configured LMSTUDIO_BASE_URL. When
// oauth.enabled(), requests are sent through an oauth2 client-credentials
// http.Client that attaches and auto-refreshes the bearer token; otherwise
// a bare *http.Client with a timeout is used.
func New(baseURL, chatModel, embedModel string, timeout time.Duration, limiter *ratelimit.Limiter, oauth OAuthConfig) *Client {
	httpClient := &http.Client{Timeout: timeout}
	if oauth.enabled() {
		cfg := clientcredentials.Config{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			TokenURL:     oauth.TokenURL,
			Scopes:       oauth.Scopes,
		}
		httpClient = cfg.Client(context.Background())
		httpClient.Timeout = timeout
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

// candidateURLs builds the prioritized, deduped list of base+suffix URLs
// to try for a given API suffix (e.g. "chat/completions"), covering both
// versioned (/v1/...) and unversioned forms.
func (c *Client) candidateURLs(suffix string) []string {
	suffix = strings.Trim(suffix, "/")
	bases := []string{c.baseURL + "/v1", c.baseURL}

	seen := make(map[string]bool)
	var out []string
	for _, b := range bases {
		url := strings.TrimRight(b, "/") + "/" + suffix
		if seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}

// sentinelPrefix marks a placeholder/template output the gateway returns
// when it has no real completion (observed by the teacher against the
// M3 mock backend); such outputs are treated as failures.
const sentinelPrefix = "<|"

// ChatResult is the parsed output of a chat completion call.
type ChatResult struct {
	Content string
	Raw     string
}

// Chat issues a chat completion request, trying candidate endpoints in
// order. jsonMode requests response_format=json_object (used by the
// intent resolver and router tiebreaker for strict-JSON outputs).
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (*ChatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"model": c.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	if jsonMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, url := range c.candidateURLs("chat/completions") {
		result, err := c.postChat(ctx, url, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(result.Content), sentinelPrefix) {
			lastErr = fmt.Errorf("sentinel placeholder output from %s", url)
			continue
		}
		return result, nil
	}

	for _, url := range c.candidateURLs("completions") {
		result, err := c.postCompletion(ctx, url, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(result.Content), sentinelPrefix) {
			lastErr = fmt.Errorf("sentinel placeholder output from %s", url)
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("all chat endpoints exhausted: %w", lastErr)
}

func (c *Client) postChat(ctx context.Context, url string, payload []byte) (*ChatResult, error) {
	raw, err := c.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content          string `json:"content"`
				ReasoningContent string `json:"reasoning_content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		return &ChatResult{Content: string(raw), Raw: string(raw)}, nil
	}

	choice := parsed.Choices[0]
	content := choice.Message.Content
	if content == "" {
		content = choice.Message.ReasoningContent
	}
	if content == "" {
		content = choice.Text
	}
	if content == "" {
		content = string(raw)
	}
	return &ChatResult{Content: content, Raw: string(raw)}, nil
}

func (c *Client) postCompletion(ctx context.Context, url string, payload []byte) (*ChatResult, error) {
	raw, err := c.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		return &ChatResult{Content: string(raw), Raw: string(raw)}, nil
	}
	return &ChatResult{Content: parsed.Choices[0].Text, Raw: string(raw)}, nil
}

// Embed computes an embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model": c.embedModel,
		"input": text,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, url := range c.candidateURLs("embeddings") {
		raw, err := c.post(ctx, url, payload)
		if err != nil {
			lastErr = err
			continue
		}
		var parsed struct {
			Data []struct {
				Embedding []float64 `json:"embedding"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Data) == 0 {
			lastErr = fmt.Errorf("unparseable embedding response from %s", url)
			continue
		}
		return parsed.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("all embedding endpoints exhausted: %w", lastErr)
}

// Healthy reports whether any candidate base URL responds successfully.
func (c *Client) Healthy(ctx context.Context) bool {
	for _, url := range c.candidateURLs("models") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true
		}
	}
	return false
}

func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, string(raw))
	}
	return raw, nil
}
