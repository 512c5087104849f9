package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Client calls the external embedding provider. A circuit breaker trips after
// consecutive failures so a dead provider fails fast instead of stalling
// every ingest chunk; callers already treat embedding failures as non-fatal.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	client   *retryablehttp.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewClient creates a new embedding client
func NewClient(endpoint, apiKey, model string, logger *zap.Logger) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = 30 * time.Second

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embedding-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Embedding circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   httpClient,
		breaker:  breaker,
		logger:   logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed computes one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string, purpose string) ([][]float32, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doEmbed(ctx, texts, purpose)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

func (c *Client) doEmbed(ctx context.Context, texts []string, purpose string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Embedding-Purpose", purpose)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned status %d", resp.StatusCode)
	}

	var payload embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(payload.Data) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(payload.Data), len(texts))
	}

	vectors := make([][]float32, len(payload.Data))
	for i, item := range payload.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
