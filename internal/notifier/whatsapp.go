package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// DefaultWhatsAppAPIURL is the WhatsApp Cloud API base.
const DefaultWhatsAppAPIURL = "https://graph.facebook.com/v19.0"

// WhatsAppConfig holds WhatsApp Cloud API configuration.
type WhatsAppConfig struct {
	APIURL        string // Graph API base URL (default DefaultWhatsAppAPIURL)
	PhoneNumberID string // Sender phone number ID
	AccessToken   string // Permanent or system-user access token
}

// Validate validates the WhatsApp configuration.
func (c *WhatsAppConfig) Validate() error {
	if c.PhoneNumberID == "" {
		return fmt.Errorf("phone number ID is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if c.APIURL != "" && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("API URL must use HTTPS")
	}
	return nil
}

// WhatsAppNotifier sends text messages through the WhatsApp Cloud API.
type WhatsAppNotifier struct {
	config     WhatsAppConfig
	httpClient *http.Client
}

// NewWhatsAppNotifier creates a new WhatsApp notifier.
func NewWhatsAppNotifier(config WhatsAppConfig) (*WhatsAppNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid whatsapp config: %w", err)
	}
	if config.APIURL == "" {
		config.APIURL = DefaultWhatsAppAPIURL
	}

	return &WhatsAppNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Channel returns the whatsapp channel.
func (w *WhatsAppNotifier) Channel() models.Channel {
	return models.ChannelWhatsApp
}

// Send sends one message per phone number. Every number is attempted.
func (w *WhatsAppNotifier) Send(ctx context.Context, msg *Message, to []string) error {
	text := truncate(summary(msg), 4096)

	var errs []error
	for _, phone := range to {
		if err := w.sendOne(ctx, phone, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", phone, err))
		}
	}
	return errors.Join(errs...)
}

// Close is a no-op for WhatsApp notifier.
func (w *WhatsAppNotifier) Close() error {
	return nil
}

// whatsAppMessage is the Cloud API text message payload.
type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

func (w *WhatsAppNotifier) sendOne(ctx context.Context, phone, text string) error {
	payload := whatsAppMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(phone, "+"),
		Type:             "text",
		Text:             whatsAppText{PreviewURL: true, Body: text},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(w.config.APIURL, "/"), w.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.config.AccessToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("whatsapp API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}
