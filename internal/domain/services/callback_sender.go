package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"honeypot-lab/internal/domain/models"
)

// DefaultCallbackURL is the case-management endpoint used when none is configured
const DefaultCallbackURL = "https://hackathon.guvi.in/api/updateHoneyPotFinalResult"

// ReportSender delivers a CallbackReport to the reporting endpoint
type ReportSender interface {
	Send(ctx context.Context, report models.CallbackReport) error
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPReportSender POSTs reports as JSON
type HTTPReportSender struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPReportSender creates a sender for url. apiKey, when set, is sent as x-api-key.
func NewHTTPReportSender(url, apiKey string, timeout time.Duration) *HTTPReportSender {
	if url == "" {
		url = DefaultCallbackURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPReportSender{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// URL returns the target endpoint
func (s *HTTPReportSender) URL() string {
	return s.url
}

// Send POSTs the report once. There are no retries.
func (s *HTTPReportSender) Send(ctx context.Context, report models.CallbackReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Honeypot-Callback/1.0")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}
