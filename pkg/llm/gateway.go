// Package llm implements the LLM gateway: a batched concurrent
// request runner over an OpenRouter-style chat-completion API, with a
// per-minute sliding-window rate cap and retry-on-transient semantics.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postfiat/taskengine/pkg/config"
)

const (
	transientRetrySleep = 5 * time.Second
	maxRetries          = 3
)

// Message is one chat message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Args is one chat-completion request.
type Args struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completer is the gateway surface the queue orchestrator depends on.
type Completer interface {
	CompleteSync(ctx context.Context, args Args) (string, error)
	CompleteBatch(ctx context.Context, batch map[string]Args) (map[string]string, error)
}

// Gateway is an HTTP client for the chat-completion API.
type Gateway struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger

	sem     chan struct{}
	limiter *slidingWindow
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets a custom logger for the gateway.
func WithLogger(logger *log.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithHTTPClient overrides the gateway's underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(g *Gateway) { g.httpClient = h }
}

// NewGateway constructs a Gateway from cfg, authenticated with apiKey.
func NewGateway(cfg *config.Config, apiKey string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:    cfg.LLMBaseURL,
		apiKey:     apiKey,
		model:      cfg.LLMModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     log.New(log.Writer(), "[LLM] ", log.LstdFlags),
		sem:        make(chan struct{}, cfg.LLMMaxConcurrency),
		limiter:    newSlidingWindow(cfg.LLMRequestsPerMinute, time.Minute),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultModel returns the model used when Args does not name one.
func (g *Gateway) DefaultModel() string {
	return g.model
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// CompleteSync issues one blocking chat-completion request, retrying
// transient failures with a fixed 5 s sleep between attempts.
func (g *Gateway) CompleteSync(ctx context.Context, args Args) (string, error) {
	if args.Model == "" {
		args.Model = g.model
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(transientRetrySleep):
			}
		}

		if err := g.limiter.Await(ctx); err != nil {
			return "", err
		}

		text, retryable, err := g.complete(ctx, args)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		g.logger.Printf("transient completion failure (attempt %d/%d): %v", attempt+1, maxRetries, err)
	}
	return "", fmt.Errorf("%w: %w", ErrTransient, lastErr)
}

// CompleteBatch executes every request in batch concurrently, bounded by
// the gateway's concurrency limit, and returns responses keyed by the
// caller's ids. Individual failures are logged and omitted from the
// result map rather than failing the whole batch.
func (g *Gateway) CompleteBatch(ctx context.Context, batch map[string]Args) (map[string]string, error) {
	batchID := uuid.New().String()[:8]
	g.logger.Printf("batch %s: %d requests", batchID, len(batch))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(batch))
	)

	for id, args := range batch {
		wg.Add(1)
		go func(id string, args Args) {
			defer wg.Done()

			select {
			case g.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-g.sem }()

			text, err := g.CompleteSync(ctx, args)
			if err != nil {
				g.logger.Printf("batch %s: request %s failed: %v", batchID, id, err)
				return
			}
			mu.Lock()
			results[id] = text
			mu.Unlock()
		}(id, args)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// complete performs one HTTP round trip. The second return value
// reports whether the failure is retryable.
func (g *Gateway) complete(ctx context.Context, args Args) (string, bool, error) {
	body, err := json.Marshal(completionRequest{
		Model:       args.Model,
		Messages:    args.Messages,
		Temperature: args.Temperature,
		MaxTokens:   args.MaxTokens,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("%w: %s", ErrRateLimited, bytes.TrimSpace(raw))
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("provider error %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("provider rejected request with %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, false, nil
}
