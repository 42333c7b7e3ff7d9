// Package ollama is a minimal client for a local Ollama server, used to turn
// source tags into a one-sentence generation prompt.
package ollama

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

// Client talks to the Ollama HTTP API.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates an Ollama client for model.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second}, // first call may load the model
	}
}

type sampling struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Stream  bool     `json:"stream"`
	Options sampling `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Available reports whether the server is up and has the model pulled. A
// bare model name matches any of its tags ("qwen3" matches "qwen3:8b").
func (c *Client) Available(ctx context.Context) bool {
	var tags tagsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == c.model || strings.HasPrefix(m.Name, c.model+":") {
			return true
		}
	}
	return false
}

// Generate sends a one-shot prompt and returns the trimmed reply. Replies are
// capped at a sentence or two.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		System:  system,
		Options: sampling{Temperature: 0.7, NumPredict: 96},
	}
	var out generateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Response), nil
}

// do sends in as JSON (when non-nil) and decodes a 200 reply into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ollama %s: marshal: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: decode: %w", path, err)
	}
	return nil
}
