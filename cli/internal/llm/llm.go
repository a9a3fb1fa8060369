// Package llm talks to OpenAI-compatible chat completion APIs. Provider and
// model are auto-detected from the environment when not configured; every
// supported provider exposes a /chat/completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Error is a provider or transport failure with a user-facing message. The
// wrapped cause stays available for the Details line.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// defaultModels prefers low-cost mini/light/haiku variants: commit message
// generation is short-output work where latency and price beat capability.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-haiku-4-5",
	"cohere":    "command-light",
	"azure":     "gpt-4o-mini",
	"gemini":    "gemini-flash-lite-latest",
}

// endpoints maps each provider to its OpenAI-compatible API root. Azure has
// no fixed root; its resource URL must come from GMUSE_BASE_URL.
var endpoints = map[string]string{
	"openai":    "https://api.openai.com/v1",
	"anthropic": "https://api.anthropic.com/v1",
	"cohere":    "https://api.cohere.ai/compatibility/v1",
	"gemini":    "https://generativelanguage.googleapis.com/v1beta/openai",
}

// keyEnvVars lists the API key variables consulted per provider, in order.
var keyEnvVars = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"cohere":    {"COHERE_API_KEY"},
	"azure":     {"AZURE_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// DetectProvider picks a provider from the environment, checking API key
// variables in a fixed priority order and falling back to a gemini-looking
// GMUSE_MODEL. Returns an *Error with setup guidance when nothing is set.
func DetectProvider() (string, error) {
	for _, p := range []string{"openai", "anthropic", "cohere", "azure", "gemini"} {
		for _, envVar := range keyEnvVars[p] {
			if os.Getenv(envVar) != "" {
				return p, nil
			}
		}
	}
	if model := strings.ToLower(os.Getenv("GMUSE_MODEL")); strings.Contains(model, "gemini") {
		return "gemini", nil
	}
	return "", &Error{Msg: "No LLM provider API key configured.\n\n" +
		"Set an environment variable for your provider:\n" +
		"  export OPENAI_API_KEY='sk-...'\n" +
		"  export ANTHROPIC_API_KEY='sk-ant-...'\n\n" +
		"Or configure in config.toml:\n" +
		"  model = 'gpt-4'\n\n" +
		"Config location: ~/.config/gmuse/config.toml"}
}

// ResolveModel resolves the model name: explicit value, then GMUSE_MODEL,
// then the provider's default.
func ResolveModel(provider, model string) (string, error) {
	if model != "" {
		return model, nil
	}
	if env := os.Getenv("GMUSE_MODEL"); env != "" {
		return env, nil
	}
	def, ok := defaultModels[provider]
	if !ok {
		return "", &Error{Msg: fmt.Sprintf("No default model configured for provider '%s'.\n\n", provider) +
			"Please specify a model explicitly:\n" +
			"  export GMUSE_MODEL='<model-name>'\n" +
			"  gmuse msg --model '<model-name>'\n\n" +
			"Or configure in config.toml:\n" +
			"  model = '<model-name>'\n\n" +
			"Config location: ~/.config/gmuse/config.toml"}
	}
	return def, nil
}

// Client generates text via a provider's chat completions API. Zero value is
// not valid; use NewClient.
type Client struct {
	Provider string
	Model    string

	baseURL    string
	apiKey     string
	timeoutSec int
	httpClient *http.Client
}

// NewClient resolves provider, model, endpoint, and credentials. Empty
// provider or model triggers auto-detection. timeoutSec bounds each request;
// a nil httpClient gets a default one.
func NewClient(provider, model string, timeoutSec int, httpClient *http.Client) (*Client, error) {
	var err error
	if provider == "" {
		provider, err = DetectProvider()
		if err != nil {
			return nil, err
		}
	}
	model, err = ResolveModel(provider, model)
	if err != nil {
		return nil, err
	}

	baseURL := os.Getenv("GMUSE_BASE_URL")
	if baseURL == "" {
		baseURL = endpoints[provider]
	}
	if baseURL == "" {
		return nil, &Error{Msg: fmt.Sprintf("Provider '%s' needs an explicit endpoint.\n\n", provider) +
			"Set the API base URL:\n" +
			"  export GMUSE_BASE_URL='https://<resource>.openai.azure.com/openai/v1'"}
	}

	var apiKey string
	for _, envVar := range keyEnvVars[provider] {
		if v := os.Getenv(envVar); v != "" {
			apiKey = v
			break
		}
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}
	}
	return &Client{
		Provider:   provider,
		Model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		timeoutSec: timeoutSec,
		httpClient: httpClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt pair and returns the trimmed completion text.
// All failures come back as *Error with a message the user can act on.
func (c *Client) Generate(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	payload := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Msg: "Failed to encode the completion request.", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Msg: "Failed to build the completion request.", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", &Error{
				Msg: fmt.Sprintf("Request timed out after %d seconds.\n\n", c.timeoutSec) +
					"Try increasing timeout:\n" +
					fmt.Sprintf("  export GMUSE_TIMEOUT=%d", c.timeoutSec*2),
				Err: err,
			}
		}
		return "", &Error{Msg: "Network error. Check your internet connection.", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", statusError(resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", &Error{Msg: "Provider returned a malformed response.", Err: err}
	}
	if len(response.Choices) == 0 {
		return "", &Error{Msg: "LLM returned empty response"}
	}
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return "", &Error{Msg: "LLM returned empty response"}
	}
	return content, nil
}

func statusError(code int, detail string) *Error {
	cause := fmt.Errorf("HTTP %d: %s", code, detail)
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{
			Msg: "Authentication failed. Check your API key:\n\n" +
				"  export OPENAI_API_KEY='sk-...'\n" +
				"  export ANTHROPIC_API_KEY='sk-ant-...'",
			Err: cause,
		}
	case http.StatusTooManyRequests:
		return &Error{Msg: "Rate limit exceeded. Wait a moment and try again.", Err: cause}
	default:
		return &Error{
			Msg: "Failed to generate commit message.\n\n" +
				"This might be a temporary issue. Try again or check:\n" +
				"  - API key is valid\n" +
				"  - Internet connection is working\n" +
				"  - Provider status page for outages",
			Err: cause,
		}
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
