// Package ocr talks to the OCR sidecar that extracts text and metadata
// from uploaded documents.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client submits documents to the OCR sidecar over HTTP. The sidecar
// processes asynchronously and reports back via webhook.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns true when a sidecar URL is set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// SubmitRequest asks the sidecar to fetch the object from storage and
// run extraction on it.
type SubmitRequest struct {
	DocumentID  string `json:"document_id"`
	Bucket      string `json:"bucket"`
	ObjectName  string `json:"object_name"`
	ContentType string `json:"content_type"`
}

// Submit queues a document for processing.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) error {
	if !c.IsConfigured() {
		return fmt.Errorf("ocr sidecar not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal ocr request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ocr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit to ocr sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ocr sidecar returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookPayload is what the sidecar posts back when extraction is done.
type WebhookPayload struct {
	DocumentID         string   `json:"document_id"`
	Status             string   `json:"status"`
	Text               string   `json:"text"`
	Category           string   `json:"category"`
	ExtractedNames     []string `json:"extracted_names"`
	ExtractedAddresses []string `json:"extracted_addresses"`
	DocumentDate       string   `json:"document_date"`
	DueDate            string   `json:"due_date"`
	Description        string   `json:"description"`
	HasSignature       bool     `json:"has_signature"`
	ImportanceScore    int      `json:"importance_score"`
	Error              string   `json:"error"`
}

// ParseDate decodes the sidecar's date strings, nil when absent or malformed.
func ParseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
