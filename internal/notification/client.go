// Package notification dispatches the downstream one-time-code notification
// issued after a registration entry has been created.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/registrations/internal/errors"
)

const (
	apiKeyHeader         = "M-API-KEY"
	idempotencyKeyHeader = "X-Idempotency-Key"
)

// payload is the notification request body.
type payload struct {
	DocumentID            string `json:"document_id"`
	EncryptedMobileNumber string `json:"encrypted_mobile_number"`
}

// Client posts entry-creation notifications to the downstream verification
// service. Each dispatch is a single attempt: failures are returned to the
// caller and never retried here.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a notification client. The timeout bounds the whole
// request including connection setup and body read.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NotifyEntryCreated posts the entry id and its encrypted payload to the
// verification service. A fresh idempotency key is attached so the receiver
// can discard duplicates if the same creation is ever dispatched twice.
func (c *Client) NotifyEntryCreated(ctx context.Context, entryID, encryptedPayload string) error {
	body, err := json.Marshal(payload{
		DocumentID:            entryID,
		EncryptedMobileNumber: encryptedPayload,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to encode notification payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, "failed to build notification request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set(idempotencyKeyHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, "failed to dispatch notification")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}

	return nil
}
