package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Message represents a message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a chat completion request to the provider
type Request struct {
	Model            string            `json:"model"`
	Messages         []Message         `json:"messages"`
	ResponseFormat   map[string]string `json:"response_format"`
	Temperature      float64           `json:"temperature"`
	TopP             float64           `json:"top_p"`
	FrequencyPenalty float64           `json:"frequency_penalty"`
	PresencePenalty  float64           `json:"presence_penalty"`
}

// CompletionOptions tunes sampling for a single call
type CompletionOptions struct {
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

var (
	// Creative settings for new recipes
	creativeOptions = CompletionOptions{Temperature: 0.9, TopP: 0.9, FrequencyPenalty: 0.5, PresencePenalty: 0.5}
	// Factual settings for nutrition and edits
	preciseOptions = CompletionOptions{Temperature: 0.2, TopP: 0.9}
)

// LLMConfig configures the provider client
type LLMConfig struct {
	APIKey        string
	APIURL        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
}

// LLMService talks to an OpenAI-compatible chat completions endpoint (DeepSeek by default)
type LLMService struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
	sem        *semaphore.Weighted
	maxActive  int
	active     atomic.Int64
	logger     *slog.Logger
}

// NewLLMService creates a new LLMService instance
func NewLLMService(cfg LLMConfig, logger *slog.Logger) *LLMService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	return &LLMService{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		maxActive:  cfg.MaxConcurrent,
		logger:     logger.With("component", "llm"),
	}
}

// Configured reports whether an API key is present
func (s *LLMService) Configured() bool {
	return s.apiKey != ""
}

// Load returns the number of in-flight calls and the concurrency ceiling
func (s *LLMService) Load() (active, limit int) {
	return int(s.active.Load()), s.maxActive
}

// Complete sends a chat completion that must answer with a JSON object. Calls beyond the
// concurrency ceiling wait for a free slot or for ctx to end.
func (s *LLMService) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error) {
	if !s.Configured() {
		return "", errors.New("AI provider API key is not configured")
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", errors.Wrap(err, "wait for provider slot")
	}
	s.active.Add(1)
	defer func() {
		s.active.Add(-1)
		s.sem.Release(1)
	}()

	reqBody := Request{
		Model:    s.model,
		Messages: messages,
		ResponseFormat: map[string]string{
			"type": "json_object",
		},
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	s.logger.DebugContext(ctx, "provider responded",
		"status", resp.StatusCode,
		"latency", time.Since(start),
		"bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response from API")
	}

	return result.Choices[0].Message.Content, nil
}

// Ping checks that the provider is reachable and accepts the key
func (s *LLMService) Ping(ctx context.Context) error {
	if !s.Configured() {
		return errors.New("AI provider API key is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.modelsURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach provider: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("provider health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func (s *LLMService) modelsURL() string {
	base := strings.TrimSuffix(s.apiURL, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return base + "/models"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
