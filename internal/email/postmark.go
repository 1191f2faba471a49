package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkEndpoint = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendConfirmation sends the email-confirmation link for a new account.
func (c *Client) SendConfirmation(toEmail, token string) error {
	link := fmt.Sprintf("%s/auth/confirm?token=%s", c.baseURL, token)
	text := fmt.Sprintf("Confirm your account by opening the link below:\n\n%s\n", link)
	html := fmt.Sprintf(`<p>Confirm your account by clicking the link below:</p><p><a href="%s">Confirm account</a></p>`, link)
	return c.send(toEmail, "Confirm your account", text, html)
}

// SendPaymentFailed notifies a user that a subscription payment failed.
func (c *Client) SendPaymentFailed(toEmail, plan string) error {
	link := c.baseURL + "/billing"
	text := fmt.Sprintf("A payment for your %s subscription failed. Update your payment method:\n\n%s\n", plan, link)
	html := fmt.Sprintf(`<p>A payment for your %s subscription failed.</p><p><a href="%s">Update your payment method</a></p>`, plan, link)
	return c.send(toEmail, "Payment failed", text, html)
}

// SendSubscriptionActive confirms a subscription upgrade.
func (c *Client) SendSubscriptionActive(toEmail, plan string) error {
	link := c.baseURL + "/billing"
	text := fmt.Sprintf("Your %s subscription is now active.\n\n%s\n", plan, link)
	html := fmt.Sprintf(`<p>Your %s subscription is now active.</p><p><a href="%s">Manage billing</a></p>`, plan, link)
	return c.send(toEmail, "Subscription active", text, html)
}

func (c *Client) send(toEmail, subject, textBody, htmlBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", postmarkEndpoint, bytes.NewReader(body))
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
