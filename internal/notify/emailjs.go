package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dukerupert/nudge/internal/model"
)

const defaultEmailJSURL = "https://api.emailjs.com/api/v1.0/email/send"

type EmailJSConfig struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	APIURL     string
}

// EmailJS sends reminders through an EmailJS template. The template
// receives the payload fields plus to_email and to_name.
type EmailJS struct {
	cfg        EmailJSConfig
	toEmail    string
	toName     string
	httpClient *http.Client
}

func NewEmailJS(cfg EmailJSConfig, to, toName string, opts ...Option) *EmailJS {
	o := applyOptions(opts)
	if cfg.APIURL == "" {
		cfg.APIURL = defaultEmailJSURL
	}
	return &EmailJS{cfg: cfg, toEmail: to, toName: toName, httpClient: o.httpClient}
}

// Configured returns true if the service, template, key and recipient are set.
func (c *EmailJS) Configured() bool {
	return c.cfg.ServiceID != "" && c.cfg.TemplateID != "" && c.cfg.PublicKey != "" && c.toEmail != ""
}

type emailJSRequest struct {
	ServiceID      string        `json:"service_id"`
	TemplateID     string        `json:"template_id"`
	UserID         string        `json:"user_id"`
	AccessToken    string        `json:"accessToken,omitempty"`
	TemplateParams emailJSParams `json:"template_params"`
}

type emailJSParams struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	Notes    string `json:"notes"`
	ToEmail  string `json:"to_email"`
	ToName   string `json:"to_name,omitempty"`
}

func (c *EmailJS) Send(ctx context.Context, r model.Reminder) error {
	if !c.Configured() {
		return fmt.Errorf("emailjs: %w", ErrNotConfigured)
	}

	p := ToPayload(r)
	body, err := json.Marshal(emailJSRequest{
		ServiceID:   c.cfg.ServiceID,
		TemplateID:  c.cfg.TemplateID,
		UserID:      c.cfg.PublicKey,
		AccessToken: c.cfg.PrivateKey,
		TemplateParams: emailJSParams{
			Title:    p.Title,
			Date:     p.Date,
			Time:     p.Time,
			Category: p.Category,
			Priority: p.Priority,
			Notes:    p.Notes,
			ToEmail:  c.toEmail,
			ToName:   c.toName,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailjs API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
