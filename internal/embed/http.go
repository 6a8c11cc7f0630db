package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	scouterr "github.com/codescout/codescout/internal/errors"
)

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// Endpoint is the base URL of an Ollama-compatible embedding API.
	Endpoint string
	// Model is the embedding model name.
	Model string
	// Dimensions is the expected dimensionality (0 = adopt from the first
	// response).
	Dimensions int
	// Timeout bounds each request (default: DefaultTimeout).
	Timeout time.Duration
	// MaxRetries is the number of attempts per request (default: 3).
	MaxRetries int
}

// HTTPEmbedder calls an Ollama-compatible /api/embed endpoint.
// Asymmetric intent is conveyed with nomic-style task prefixes.
type HTTPEmbedder struct {
	client *http.Client
	config HTTPConfig

	mu   sync.Mutex
	dims int
}

var _ Embedder = (*HTTPEmbedder)(nil)

// embedRequest is the /api/embed request body.
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embedResponse is the /api/embed response body.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewHTTPEmbedder creates an embedder against the configured endpoint.
// No network call is made until the first Embed.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &HTTPEmbedder{
		client: &http.Client{},
		config: cfg,
		dims:   cfg.Dimensions,
	}
}

// Embed returns one vector per text, in order. A dimension or count
// mismatch from the service is a hard validation error, never silently
// truncated or padded.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = string(intent) + ": " + t
	}

	raw, err := e.doWithRetry(ctx, prefixed)
	if err != nil {
		return nil, err
	}

	if len(raw) != len(texts) {
		return nil, scouterr.New(scouterr.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(raw)), nil)
	}

	e.mu.Lock()
	if e.dims == 0 && len(raw) > 0 {
		e.dims = len(raw[0])
	}
	dims := e.dims
	e.mu.Unlock()

	vectors := make([][]float32, len(raw))
	for i, emb := range raw {
		if len(emb) != dims {
			return nil, scouterr.New(scouterr.ErrCodeDimensionMismatch,
				fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", dims, len(emb)), nil)
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vectors[i] = normalizeVector(vec)
	}

	return vectors, nil
}

// doWithRetry performs the request with exponential backoff.
func (e *HTTPEmbedder) doWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		raw, err := e.doEmbed(reqCtx, texts)
		cancel()

		if err == nil {
			return raw, nil
		}
		lastErr = err

		slog.Debug("embedding attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("texts", len(texts)),
			slog.String("error", err.Error()))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, scouterr.New(classifyEmbedError(lastErr),
		fmt.Sprintf("embedding failed after %d attempts", e.config.MaxRetries), lastErr)
}

// classifyEmbedError maps a transport failure to an error code so callers
// can tell retryable outages (timeout, connection refused) from hard
// failures.
func classifyEmbedError(err error) string {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return scouterr.ErrCodeEmbedTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return scouterr.ErrCodeEmbedUnavailable
	}
	return scouterr.ErrCodeEmbedFailed
}

// doEmbed performs a single request.
func (e *HTTPEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float64, error) {
	url := strings.TrimSuffix(e.config.Endpoint, "/") + "/api/embed"

	var input any
	if len(texts) == 1 {
		input = texts[0]
	} else {
		input = texts
	}

	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result.Embeddings, nil
}

// Dimensions returns the embedding dimension (DefaultDimensions before the
// first successful call when auto-detecting).
func (e *HTTPEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		return DefaultDimensions
	}
	return e.dims
}

// ModelName returns the model identifier.
func (e *HTTPEmbedder) ModelName() string {
	return e.config.Model
}
