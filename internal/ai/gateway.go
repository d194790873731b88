package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Gateway sends prompts to the backend proxy endpoint on the dashboard's
// behalf. Failures degrade to a short, user-displayable error string so the
// output area always has something to render; the gateway never surfaces an
// error to its callers.
type Gateway struct {
	endpoint string
	client   *http.Client
}

// NewGateway creates a Gateway targeting the proxy endpoint URL.
func NewGateway(endpoint string, timeout time.Duration) *Gateway {
	return &Gateway{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type proxyRequest struct {
	Prompt string `json:"prompt"`
}

type proxyResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Query sends the prompt as the sole payload of a single request. On success
// it returns the generated text (possibly empty; callers substitute their
// own placeholder). On any failure it returns a non-empty error string
// suitable for direct display.
func (g *Gateway) Query(ctx context.Context, prompt string) string {
	payload, err := json.Marshal(proxyRequest{Prompt: prompt})
	if err != nil {
		return "Error querying Gemini: " + err.Error()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "Error querying Gemini: " + err.Error()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "Error querying Gemini: " + err.Error()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "Error querying Gemini: " + err.Error()
	}

	var pr proxyResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &pr) == nil && pr.Error != "" {
			return "Error querying Gemini: " + pr.Error
		}
		return "Error querying Gemini: unexpected status " + resp.Status
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return "Error querying Gemini: malformed response"
	}
	return pr.Response
}
