// Package ai holds the two halves of the AI path: the Gemini upstream client
// used by the proxy endpoint, and the Gateway the dashboard flows use to
// reach that endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weathersense/weathersense/internal/circuitbreaker"
	"github.com/weathersense/weathersense/internal/observability"
)

// ErrGenerationFailed wraps any upstream transport failure, non-success
// status, or malformed response body from the Gemini API.
var ErrGenerationFailed = errors.New("generation failed")

// mockEchoLimit bounds the prompt echo in mocked responses.
const mockEchoLimit = 400

// GeminiClient calls the hosted generative model. With no API key it stays
// in mock mode and echoes prompts deterministically, so the dashboard works
// in local development without a credential.
type GeminiClient struct {
	apiKey  string
	apiURL  string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewGeminiClient creates a GeminiClient. An empty apiKey enables mock mode.
func NewGeminiClient(apiKey, apiURL string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetCircuitBreaker installs a breaker guarding upstream calls.
func (c *GeminiClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// Mocked reports whether the client has no credential and will echo prompts.
func (c *GeminiClient) Mocked() bool {
	return c.apiKey == ""
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt to the model and returns the generated text. In
// mock mode it returns the deterministic echo without any network call.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.Mocked() {
		return MockResponse(prompt), nil
	}

	var text string
	call := func() error {
		var err error
		text, err = c.generate(ctx, prompt)
		return err
	}

	if c.breaker != nil {
		if err := c.breaker.Call(ctx, call); err != nil {
			if errors.Is(err, circuitbreaker.ErrOpen) {
				return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
			}
			return "", err
		}
		return text, nil
	}
	if err := call(); err != nil {
		return "", err
	}
	return text, nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.ObserveUpstreamCall(observability.UpstreamGemini, "error", time.Since(start).Seconds())
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	observability.ObserveUpstreamCall(observability.UpstreamGemini, observability.StatusLabel(resp.StatusCode), time.Since(start).Seconds())
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrGenerationFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response body: %v", ErrGenerationFailed, err)
	}

	var gen generateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrGenerationFailed, err)
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: response contains no candidates", ErrGenerationFailed)
	}
	return gen.Candidates[0].Content.Parts[0].Text, nil
}

// MockResponse is the deterministic credential-free reply: the first 400
// characters of the prompt echoed back.
func MockResponse(prompt string) string {
	echo := prompt
	if runes := []rune(prompt); len(runes) > mockEchoLimit {
		echo = string(runes[:mockEchoLimit])
	}
	return "Mocked Gemini response for prompt:\n\n" + echo + "..."
}
