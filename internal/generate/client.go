package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/satindergrewal/loopstretch/internal/metrics"
)

var (
	ErrGenerationFailed  = errors.New("generation failed")
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrRemoteService     = errors.New("generation service error")
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultMaxPollDuration = 5 * time.Minute
	DefaultMaxDownload     = 128 << 20
)

// Client talks to a Replicate-style predictions API: submit a job, poll its
// status URL, then fetch the output file.
type Client struct {
	apiURL  string
	apiKey  string
	version string
	http    *http.Client

	pollInterval time.Duration
	maxPoll      time.Duration
	maxDownload  int64
}

// NewClient creates a generation API client.
func NewClient(apiURL, apiKey, version string) *Client {
	return &Client{
		apiURL:       apiURL,
		apiKey:       apiKey,
		version:      version,
		http:         &http.Client{Timeout: 60 * time.Second},
		pollInterval: DefaultPollInterval,
		maxPoll:      DefaultMaxPollDuration,
		maxDownload:  DefaultMaxDownload,
	}
}

// SetPolling overrides the poll interval and the overall poll budget.
func (c *Client) SetPolling(interval, maxDuration time.Duration) {
	if interval > 0 {
		c.pollInterval = interval
	}
	if maxDuration > 0 {
		c.maxPoll = maxDuration
	}
}

// SetMaxDownload caps the size of a generated file in bytes.
func (c *Client) SetMaxDownload(n int64) {
	if n > 0 {
		c.maxDownload = n
	}
}

// Request describes one generation job.
type Request struct {
	Audio    []byte // encoded prompt audio (WAV)
	Duration int    // requested output length in seconds
	Prompt   string // optional text description
	Token    string // overrides the client's API key when set
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Audio    string `json:"audio"`
	Duration int    `json:"duration"`
	Prompt   string `json:"prompt,omitempty"`
}

// Prediction is the service's view of a submitted job.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Generate submits a job, waits for it to finish and returns the output audio.
func (c *Client) Generate(ctx context.Context, req Request) ([]byte, error) {
	token := c.token(req.Token)
	p, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("Generation submitted: %s (duration %ds)", p.ID, req.Duration)

	outputURL, err := c.PollUntilDone(ctx, p.URLs.Get, token)
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, outputURL)
}

func (c *Client) token(override string) string {
	if override != "" {
		return override
	}
	return c.apiKey
}

// Submit posts a generation job. The service must answer 201 with a JSON body
// carrying urls.get.
func (c *Client) Submit(ctx context.Context, req Request) (*Prediction, error) {
	body, err := json.Marshal(predictionRequest{
		Version: c.version,
		Input: predictionInput{
			Audio:    base64.StdEncoding.EncodeToString(req.Audio),
			Duration: req.Duration,
			Prompt:   req.Prompt,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := c.token(req.Token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w: %v", ErrRemoteService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("submit job: %w: status %d: %s", ErrRemoteService, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode submit response: %w: %v", ErrRemoteService, err)
	}
	if p.URLs.Get == "" {
		return nil, fmt.Errorf("submit response has no urls.get: %w", ErrRemoteService)
	}
	return &p, nil
}

// PollUntilDone polls getURL until the job succeeds, fails or the poll budget
// runs out, returning the output file URL on success.
func (c *Client) PollUntilDone(ctx context.Context, getURL, token string) (string, error) {
	deadline := time.Now().Add(c.maxPoll)

	for {
		p, err := c.poll(ctx, getURL, token)
		switch {
		case errors.Is(err, ErrRemoteService):
			return "", err
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Printf("Poll error: %v, retrying...", err)
		default:
			metrics.GenerationPolls.WithLabelValues(p.Status).Inc()
			switch p.Status {
			case "succeeded":
				return outputURL(p.Output)
			case "failed", "canceled":
				return "", fmt.Errorf("%w: job %s %s: %s", ErrGenerationFailed, p.ID, p.Status, errorText(p.Error))
			}
		}

		if time.Now().Add(c.pollInterval).After(deadline) {
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, c.maxPoll)
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// poll fetches the job status once. Transport errors and 5xx are returned
// plain so the caller retries; client errors and non-JSON bodies are wrapped
// in ErrRemoteService.
func (c *Client) poll(ctx context.Context, getURL, token string) (*Prediction, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w: %v", ErrRemoteService, err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("poll: %w: status %d", ErrRemoteService, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll: status %d", resp.StatusCode)
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode poll response: %w: %v", ErrRemoteService, err)
	}
	return &p, nil
}

// outputURL accepts either a single URL or a list of URLs (first wins).
func outputURL(raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0] != "" {
		return list[0], nil
	}
	return "", fmt.Errorf("no audio file in output %s: %w", string(raw), ErrRemoteService)
}

func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "no error detail"
	}
	return string(raw)
}

// Download fetches the generated file with a plain GET. Files over the
// download cap are rejected.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w: %v", ErrRemoteService, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w: %v", ErrRemoteService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download audio: %w: status %d", ErrRemoteService, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w: %v", ErrRemoteService, err)
	}
	if int64(len(data)) > c.maxDownload {
		return nil, fmt.Errorf("download audio: %w: file larger than %d bytes", ErrRemoteService, c.maxDownload)
	}
	return data, nil
}
