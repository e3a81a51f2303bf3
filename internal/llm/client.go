// Package llm talks to an Ollama server for text generation and model
// discovery. The model is chosen per call; the client holds no mutable model
// state and is safe for concurrent use.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// Common errors
var (
	ErrNoModel        = errors.New("no model specified")
	ErrGenerateFailed = errors.New("generation failed")
)

// Config holds client configuration
type Config struct {
	BaseURL string
	// DefaultModel is used when a request names no model
	DefaultModel string
	Timeout      time.Duration
}

// GenerateRequest is a single non-streaming completion request
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature float64
}

// ModelInfo describes a locally available model
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Client is an Ollama HTTP client
type Client struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// New creates a Client
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// DefaultModel returns the model used when a request names none
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a single completion and returns the response text
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return "", ErrNoModel
	}

	body, err := json.Marshal(generateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  false,
		Options: &options{Temperature: req.Temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama error %d: %s", ErrGenerateFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGenerateFailed, err)
	}
	return out.Response, nil
}

// ListModels returns the models installed on the server
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama: decode models: %w", err)
	}
	return out.Models, nil
}

// Ping checks that the server is reachable without running inference
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}
