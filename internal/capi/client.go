package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxErrorBodyBytes = 4096

// APIError is returned when the Conversions API answers with a non-2xx status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("conversions api returned status %d: %s", e.StatusCode, e.Body)
}

// ClientConfig configures the Conversions API client
type ClientConfig struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
}

// Client posts event batches to the Conversions API
type Client struct {
	httpClient *http.Client
	config     ClientConfig
	log        *zap.Logger
}

// NewClient creates a new Conversions API client
func NewClient(config ClientConfig, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		log:        log,
	}
}

type eventsRequest struct {
	Data        []Event `json:"data"`
	AccessToken string  `json:"access_token"`
}

// SendEvents posts events for a pixel. Any transport error or non-2xx response is returned as an error.
func (c *Client) SendEvents(ctx context.Context, pixelID, token string, events []Event) error {
	body, err := json.Marshal(eventsRequest{Data: events, AccessToken: token})
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL(pixelID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Info("Sending events to Conversions API",
		zap.String("pixel_id", pixelID),
		zap.Int("event_count", len(events)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post events: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) eventsURL(pixelID string) string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if c.config.APIVersion == "" {
		return fmt.Sprintf("%s/%s/events", base, pixelID)
	}
	return fmt.Sprintf("%s/%s/%s/events", base, c.config.APIVersion, pixelID)
}
