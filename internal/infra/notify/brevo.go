package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/arklim/learnstore/internal/infra/config"
)

const defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoClient sends transactional email through the Brevo HTTP API v3.
type BrevoClient struct {
	apiKey     string
	endpoint   string
	fromEmail  string
	fromName   string
	httpClient *http.Client
}

// NewBrevoClient builds a client from mail settings. Per-request deadlines come from the caller's context.
func NewBrevoClient(cfg config.MailSettings, httpClient *http.Client) (*BrevoClient, error) {
	if cfg.Brevo.APIKey == "" || cfg.FromAddress == "" {
		return nil, fmt.Errorf("brevo: api key and from address are required: %w", ErrNotConfigured)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	endpoint := cfg.Brevo.Endpoint
	if endpoint == "" {
		endpoint = defaultBrevoEndpoint
	}

	return &BrevoClient{
		apiKey:     cfg.Brevo.APIKey,
		endpoint:   endpoint,
		fromEmail:  cfg.FromAddress,
		fromName:   cfg.FromName,
		httpClient: httpClient,
	}, nil
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent"`
}

// SendEmail posts one message. 4xx responses are not retried.
func (c *BrevoClient) SendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" || subject == "" || body == "" {
		return permanent(errors.New("brevo: recipient, subject, and body are required"))
	}

	payload, err := json.Marshal(brevoSendRequest{
		Sender:      brevoAddress{Email: c.fromEmail, Name: c.fromName},
		To:          []brevoAddress{{Email: to}},
		Subject:     subject,
		HTMLContent: "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>",
		TextContent: body,
	})
	if err != nil {
		return permanent(fmt.Errorf("brevo: marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return permanent(fmt.Errorf("brevo: build request: %w", err))
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err = fmt.Errorf("brevo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return permanent(err)
	}
	return err
}
