package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/dukerupert/nudge/internal/model"
)

const defaultPostmarkURL = "https://api.postmarkapp.com/email"

type PostmarkConfig struct {
	ServerToken string
	From        string
	APIURL      string
}

// Postmark sends reminder emails through the Postmark API.
type Postmark struct {
	serverToken string
	fromEmail   string
	toEmail     string
	apiURL      string
	httpClient  *http.Client
}

func NewPostmark(cfg PostmarkConfig, to string, opts ...Option) *Postmark {
	o := applyOptions(opts)
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultPostmarkURL
	}
	return &Postmark{
		serverToken: cfg.ServerToken,
		fromEmail:   cfg.From,
		toEmail:     to,
		apiURL:      apiURL,
		httpClient:  o.httpClient,
	}
}

// Configured returns true if the server token and both addresses are set.
func (c *Postmark) Configured() bool {
	return c.serverToken != "" && c.fromEmail != "" && c.toEmail != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// Send delivers a reminder email.
func (c *Postmark) Send(ctx context.Context, r model.Reminder) error {
	if !c.Configured() {
		return fmt.Errorf("postmark: %w", ErrNotConfigured)
	}

	p := ToPayload(r)
	textBody := fmt.Sprintf(
		"%s\n\nWhen: %s %s\nCategory: %s\nPriority: %s\nNotes: %s\n",
		p.Title, p.Date, p.Time, p.Category, p.Priority, p.Notes,
	)
	htmlBody := fmt.Sprintf(
		`<h2>%s</h2><p><strong>When:</strong> %s %s</p><p><strong>Category:</strong> %s</p><p><strong>Priority:</strong> %s</p><p><strong>Notes:</strong> %s</p>`,
		html.EscapeString(p.Title),
		html.EscapeString(p.Date), html.EscapeString(p.Time),
		html.EscapeString(p.Category),
		html.EscapeString(p.Priority),
		html.EscapeString(p.Notes),
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       c.toEmail,
		Subject:  "Reminder: " + p.Title,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "reminder",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
