package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	resilience "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Resilience"
)

// APIClient handles communication with the API Service
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retrier    *resilience.Retrier
}

// NewAPIClient creates a new API client. The breaker opens after five
// consecutive failed attempts and probes again after thirty seconds.
func NewAPIClient(baseURL string, maxRetries int, retryDelay time.Duration) *APIClient {
	breaker := resilience.NewCircuitBreaker(5, 30*time.Second)
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: breaker,
		retrier: resilience.NewRetrier(maxRetries, retryDelay, breaker),
	}
}

// ReadingPayload is one reading as accepted by POST /readings/batch
type ReadingPayload struct {
	Sensor        string  `json:"sensor"`
	Value         float64 `json:"valor_coleta"`
	CollectedAt   string  `json:"data_hora_coleta,omitempty"`
	RelayStatus   *int    `json:"status_rele,omitempty"`
	TriggerReason string  `json:"motivo_acionamento,omitempty"`
}

// CreateReadingsRequest is the body of POST /readings/batch
type CreateReadingsRequest struct {
	Readings []ReadingPayload `json:"readings"`
}

// CreateReadingsResponse is the response from POST /readings/batch
type CreateReadingsResponse struct {
	Success  bool   `json:"success"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// CreateReadings stores a batch of readings through the API Service.
// Rejections by the API (4xx other than 429) are not retried.
func (c *APIClient) CreateReadings(ctx context.Context, readings []ReadingPayload) (int, error) {
	var inserted int

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.makeRequest(ctx, http.MethodPost, "/readings/batch", CreateReadingsRequest{Readings: readings})
		if err != nil {
			return fmt.Errorf("failed to create readings: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			statusErr := fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return resilience.Permanent(statusErr)
			}
			return statusErr
		}

		var response CreateReadingsResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if !response.Success && response.Error != "" {
			return fmt.Errorf("API error: %s", response.Error)
		}

		inserted = response.Inserted
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// makeRequest makes an HTTP request to the API Service
func (c *APIClient) makeRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "irrigation-ingestor-service")

	return c.httpClient.Do(req)
}

// Health checks if the API Service is alive
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health/live", nil)
	if err != nil {
		return fmt.Errorf("failed to check API health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	return c.breaker.Status()
}
